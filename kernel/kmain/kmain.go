// Package kmain hosts the kernel entry point and the boot sequence that
// brings up the runtime substrate: descriptor tables, interrupt controllers,
// the timer tick, the heap and identity paging.
package kmain

import (
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/gdt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/hal"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/heap"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/idt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/multiboot"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/paging"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pit"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/song"
)

// maxHeapBytes caps the heap region carved out of the RAM that follows the
// kernel image.
const maxHeapBytes = 4 << 20

var (
	errBootMagic   = &kernel.Error{Module: "kmain", Message: "bootloader magic mismatch"}
	errNoUsableRAM = &kernel.Error{Module: "kmain", Message: "no usable RAM region covers the end of the kernel image"}

	gdtInitFn          = gdt.Init
	idtInitFn          = idt.Init
	detectHardwareFn   = hal.DetectHardware
	heapInitFn         = heap.Init
	pagingInitFn       = paging.Init
	pitInitFn          = pit.Init
	enableInterruptsFn = cpu.EnableInterrupts
	haltFn             = cpu.Halt
	panicFn            = kfmt.Panic
	playSyncFn         = song.PlaySync
	activeKeyboardFn   = hal.ActiveKeyboard
	visitMemRegionsFn  = multiboot.VisitMemRegions
	bootLoaderNameFn   = multiboot.BootLoaderName
)

// Kmain is the kernel entry point. The boot shim invokes it with the magic
// value and info block address handed over by the bootloader plus the
// physical extent of the loaded kernel image.
//
// Kmain is not expected to return.
func Kmain(bootMagic uint32, multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	if bootMagic != multiboot.BootMagic {
		panicFn(errBootMagic)
		return
	}

	multiboot.SetInfoPtr(multibootInfoPtr)

	gdtInitFn()
	idtInitFn()
	detectHardwareFn()

	kfmt.Printf("kernel image at [0x%x - 0x%x], booted by %s\n", kernelStart, kernelEnd, bootLoaderNameFn())
	printMemoryMap()

	heapStart, heapEnd, err := heapRegion(kernelEnd)
	if err != nil {
		panicFn(err)
		return
	}

	if err = heapInitFn(heapStart, heapEnd); err != nil {
		panicFn(err)
		return
	}
	kfmt.Printf("[heap] using region [0x%x - 0x%x]\n", heapStart, heapEnd)

	if err = pagingInitFn(heapEnd); err != nil {
		panicFn(err)
		return
	}

	if err = pitInitFn(); err != nil {
		panicFn(err)
		return
	}

	enableInterruptsFn()

	demo()
	idleLoop()
}

// heapRegion picks the heap bounds: the first byte after the kernel image
// aligned up to 8 bytes, extending to the end of the usable RAM region that
// surrounds it, capped at maxHeapBytes.
func heapRegion(kernelEnd uintptr) (uintptr, uintptr, *kernel.Error) {
	var (
		start = (kernelEnd + 7) &^ 7
		end   uintptr
	)

	visitMemRegionsFn(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		regionStart := uintptr(region.PhysAddress)
		regionEnd := uintptr(region.PhysAddress + region.Length)
		if start < regionStart || start >= regionEnd {
			return true
		}

		end = regionEnd
		return false
	})

	if end == 0 {
		return 0, 0, errNoUsableRAM
	}

	if max := start + maxHeapBytes; end > max {
		end = max
	}

	return start, end, nil
}

// printMemoryMap dumps the bootloader-provided memory map to the console.
func printMemoryMap() {
	kfmt.Printf("memory map:\n")
	visitMemRegionsFn(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Printf("\t[0x%10x - 0x%10x] %s\n", region.PhysAddress, region.PhysAddress+region.Length, region.Type.String())
		return true
	})
}

// demo exercises the freshly initialized substrate: a few allocations with a
// heap layout dump, then the bundled songs over the PC speaker.
func demo() {
	a, _ := heap.Malloc(1024)
	b, _ := heap.Malloc(4096)
	c, _ := heap.Malloc(16384)
	kfmt.Printf("allocated blocks at 0x%x, 0x%x, 0x%x\n", a, b, c)

	heap.Free(b)
	heap.DumpLayout(kfmt.GetOutputSink())
	heap.Free(a)
	heap.Free(c)

	for _, s := range song.Library {
		kfmt.Printf("[player] playing %s (%d notes)\n", s.Name, len(s.Notes))
		if err := playSyncFn(s); err != nil {
			kfmt.Printf("[player] %s\n", err.Message)
		}
	}
}

// idleLoop echoes keyboard input to the console, halting the CPU between
// interrupts. It never returns.
func idleLoop() {
	kbd := activeKeyboardFn()

	kfmt.Printf("\nboot complete; keyboard input is echoed below\n")
	for {
		if kbd != nil {
			for {
				ch, ok := kbd.ReadKey()
				if !ok {
					break
				}
				kfmt.Printf("%c", ch)
			}
		}

		haltFn()
	}
}
