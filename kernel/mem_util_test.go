package kernel

import "testing"

func TestMemset(t *testing.T) {
	specs := []int{0, 1, 3, 16, 1000}

	for specIndex, size := range specs {
		buf := make([]byte, size)
		Memset(buf, 0xfe)

		for i, b := range buf {
			if b != 0xfe {
				t.Errorf("[spec %d] expected byte %d to be set; got %x", specIndex, i, b)
				break
			}
		}
	}
}
