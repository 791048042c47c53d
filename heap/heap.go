/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package heap bootstraps the managed heap, nursery, marking bitset, and
// marking-stack regions that generated code owns for the lifetime of the
// process. It also provides the grow/shrink primitives the mutator calls
// on demand.
package heap

import (
	"errors"
	"fmt"
)

const (
	wordSize = 8

	// defaultInitialHeap is the initial committed heap size, before page
	// rounding: 8 MiB.
	defaultInitialHeap = 8 * 1024 * 1024
	// defaultMaxHeap is the maximum reservation: 8 GiB.
	defaultMaxHeap = 8 * 1024 * 1024 * 1024

	// nurseryFraction is the fraction of the initial heap dedicated to the
	// nursery; a nursery half-space is initialHeap/nurseryFraction/2.
	nurseryFraction = 8

	// markingStackSize is a fixed 8 MiB region, page rounded.
	markingStackSize = 8 * 1024 * 1024

	// execStackSize is the size of each of the two initial execution
	// stacks bump-allocated from the heap.
	execStackSize = 8 * 1024

	// bitsetAlignment is the alignment the marking bitset's base must
	// satisfy so bitset_base = bitset - (heap_start>>6) is safe to use
	// in the mutator's hot path.
	bitsetAlignment = 512

	// bytesPerMarkByte is how many heap bytes one marking-bitset byte
	// covers: one bit per heap word (wordSize bytes), 8 bits per bitset
	// byte, so wordSize*8 heap bytes per bitset byte.
	bytesPerMarkByte = wordSize * 8
)

var (
	// ErrUnaligned is passed to the FatalFunc (and Bootstrap returns nil)
	// when the marking bitset is not aligned to bitsetAlignment.
	ErrUnaligned = errors.New("heap: marking bitset base is not 512-byte aligned")

	// ErrBadSize is passed to the FatalFunc when Map is given sizes that
	// are not whole multiples of the system page size. Resize does not
	// check its sizes.
	ErrBadSize = errors.New("heap: size is not a multiple of the page size")
)

// Layout carries the size and fraction choices that would otherwise be
// hardcoded constants, so a config file can override them for testing
// without touching the bootstrap algorithm itself.
type Layout struct {
	InitialHeap uint64
	MaxHeap     uint64
	NurseryFrac uint64
}

// DefaultLayout returns the default layout: 8 MiB initial heap, 8 GiB
// maximum reservation, 1/8 nursery fraction.
func DefaultLayout() Layout {
	return Layout{
		InitialHeap: defaultInitialHeap,
		MaxHeap:     defaultMaxHeap,
		NurseryFrac: nurseryFraction,
	}
}

func (l Layout) normalize() Layout {
	if l.InitialHeap == 0 {
		l.InitialHeap = defaultInitialHeap
	}
	if l.MaxHeap == 0 {
		l.MaxHeap = defaultMaxHeap
	}
	if l.NurseryFrac == 0 {
		l.NurseryFrac = nurseryFraction
	}
	return l
}

// StackFrame is the variable-sized per-frame record: a return program
// counter and a liveness bitmap over the frame's slots, followed by a
// flexible tail of slot words. The tail is intentionally represented as a
// raw byte slice: generated code, not this package, interprets it.
type StackFrame struct {
	ReturnPC uintptr
	Liveness uint64
	Slots    []byte
}

// ExecStack is the execution-stack descriptor handed to generated code.
// The "system" stack is reachable as Tail, forming a two-element linked
// list.
type ExecStack struct {
	Committed uint64
	Base      uintptr
	Frame     uintptr
	SavedPC   uintptr
	Tail      *ExecStack
}

// InitRecord is the Initialization Record: the pointer/size bundle handed
// from the driver to generated code at startup.
type InitRecord struct {
	HeapStart         uintptr
	HeapTop           uintptr
	HeapLimit         uintptr
	HeapOldObjectsEnd uintptr

	BitsetBase       uintptr
	BiasedBitsetBase uintptr

	CommittedHeapSize uint64
	ConfiguredLimit   uint64
	MaxMappedSize     uint64

	MarkStackStart  uintptr
	MarkStackBottom uintptr
	MarkStackTop    uintptr

	UserStack   *ExecStack
	SystemStack *ExecStack

	// Trackers is the opaque tracker-list pointer; it starts out empty and
	// generated code and the collector populate it.
	Trackers uintptr
}

// fatalf prints the formatted "[file:line] <os-error-text>" line and
// exits(-1). Callers pass the file, line, and error text already decoded
// (Go's error.Error() stands in for strerror/FormatMessage).
func fatalf(logf func(string, ...any), format string, args ...any) {
	if logf == nil {
		logf = func(f string, a ...any) { fmt.Printf(f+"\n", a...) }
	}
	logf(format, args...)
	osExit(-1)
}

func roundUp(v, mult uint64) uint64 {
	if mult == 0 {
		return v
	}
	if rem := v % mult; rem != 0 {
		v += mult - rem
	}
	return v
}
