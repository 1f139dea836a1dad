// Package kernel provides the error type shared by all kernel modules and a
// small set of memory helpers.
package kernel

// Error describes a kernel error. Kernel errors are defined as global
// variables that are pointers to the Error structure; error paths must not
// allocate, so errors.New is off limits.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
