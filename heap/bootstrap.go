/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package heap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Bootstrap reserves and commits the heap, the marking bitset, and the
// marking stack, then builds the two initial execution stacks and
// returns a populated Initialization Record. Every failure along this
// path is fatal; onFatal is invoked (or the default stderr+exit(-1) path
// is taken) and a nil InitRecord is returned so a
// test harness can observe "would have exited" without the process
// actually dying when it supplies its own FatalFunc.
func Bootstrap(layout Layout, onFatal FatalFunc) *InitRecord {
	layout = layout.normalize()
	pageSize := uint64(unix.Getpagesize())

	initialHeap := roundUp(layout.InitialHeap, pageSize)
	maxHeap := roundUp(layout.MaxHeap, pageSize)

	heapBase := Map(initialHeap, maxHeap, onFatal)
	if heapBase == 0 {
		return nil
	}

	nurseryHalf := roundUp(initialHeap/layout.NurseryFrac/2, wordSize)

	rec := &InitRecord{
		HeapStart:         heapBase,
		HeapOldObjectsEnd: heapBase,
		HeapTop:           heapBase + uintptr(nurseryHalf),
		HeapLimit:         heapBase + uintptr(2*nurseryHalf),
		CommittedHeapSize: initialHeap,
		ConfiguredLimit:   initialHeap,
		MaxMappedSize:     maxHeap,
	}

	bitsetMax := maxHeap / bytesPerMarkByte
	bitsetInitial := initialHeap / bytesPerMarkByte
	bitsetInitial = roundUp(bitsetInitial, pageSize)
	bitsetMax = roundUp(bitsetMax, pageSize)

	bitsetBase := Map(bitsetInitial, bitsetMax, onFatal)
	if bitsetBase == 0 {
		Unmap(heapBase, maxHeap)
		return nil
	}
	if bitsetBase%bitsetAlignment != 0 {
		Unmap(heapBase, maxHeap)
		Unmap(bitsetBase, bitsetMax)
		callFatal(onFatal, fmt.Errorf("%w: base=%#x", ErrUnaligned, bitsetBase))
		return nil
	}
	rec.BitsetBase = bitsetBase
	rec.BiasedBitsetBase = bitsetBase - (heapBase >> 6)

	markStackSize := roundUp(markingStackSize, pageSize)
	markStackBase := Map(markStackSize, markStackSize, onFatal)
	if markStackBase == 0 {
		Unmap(heapBase, maxHeap)
		Unmap(bitsetBase, bitsetMax)
		return nil
	}
	rec.MarkStackStart = markStackBase
	rec.MarkStackBottom = markStackBase
	rec.MarkStackTop = markStackBase // empty, grows downward semantically

	bump := &bumpAllocator{base: heapBase, top: heapBase}
	system := &ExecStack{
		Committed: execStackSize,
		Base:      bump.alloc(execStackSize),
	}
	user := &ExecStack{
		Committed: execStackSize,
		Base:      bump.alloc(execStackSize),
		Tail:      system,
	}
	rec.UserStack = user
	rec.SystemStack = system

	return rec
}

// bumpAllocator carves the two initial execution stacks out of the
// managed heap: it never returns memory, and it never checks against
// HeapTop, since the stacks are carved out before any mutator code can
// race it.
type bumpAllocator struct {
	base uintptr
	top  uintptr
}

func (b *bumpAllocator) alloc(size uint64) uintptr {
	p := b.top
	b.top += uintptr(size)
	return p
}

// ByteAt returns a 1-byte slice viewing the byte at addr, used by callers
// that need to read or write a single heap byte (e.g. a liveness bitmap
// bit) without unsafe-pointer boilerplate at every call site.
func ByteAt(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), 1)
}
