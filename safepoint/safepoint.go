/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package safepoint implements the immutable, process-global safepoint
// catalog and the in-place instruction patching that lets an external
// debugger halt generated code at known program counters.
//
// The catalog itself is four levels deep (Table -> File -> Entry ->
// AddressList -> Address) and is never mutated at runtime; only the
// one-byte instruction each Address points at is. That byte is always
// one of NOP or INT3, an x86-specific assumption this package inherits
// unchanged (see DESIGN.md).
package safepoint

import (
	"errors"
)

const (
	// NOP is the x86 no-op opcode: execution proceeds past a safepoint.
	NOP byte = 0x90
	// INT3 is the x86 breakpoint trap opcode: execution raises a debug
	// interrupt at a safepoint.
	INT3 byte = 0xCC
)

// ErrUnsupportedArch is returned by EnableAll/DisableAll/WriteBreakpoint
// on architectures where NOP/INT3 have no matching one-byte trap, made
// explicit instead of silently corrupting non-x86 instruction streams.
var ErrUnsupportedArch = errors.New("safepoint: one-byte trap patching is only defined for amd64 and 386")

// RunMode mirrors the debugger's "run_mode" global.
type RunMode int32

const (
	Run RunMode = iota
	Step
	Next
)

// Address is a safepoint address: a single byte of machine-code text and
// the source-level group it belongs to.
type Address struct {
	addr  uintptr
	Group uint64
}

// AddressList groups every Address for a single source-level point.
type AddressList struct {
	Addresses []Address
}

func (l *AddressList) write(inst byte) error {
	for i := range l.Addresses {
		if err := writeByte(l.Addresses[i].addr, inst); err != nil {
			return err
		}
	}
	return nil
}

// find performs a linear scan over this list's addresses, returning nil
// if none matches pc.
func (l *AddressList) find(pc uintptr) *Address {
	for i := range l.Addresses {
		if l.Addresses[i].addr == pc {
			return &l.Addresses[i]
		}
	}
	return nil
}

// Entry binds a source-line number to one AddressList.
type Entry struct {
	Line    uint64
	Address *AddressList
}

// WriteBreakpoint writes inst (NOP or INT3) to every address in this
// entry's address list, UNLESS the table it belongs to has all safepoints
// globally enabled, in which case the global state dominates and this is
// a no-op.
func (e *Entry) WriteBreakpoint(t *Table, inst byte) error {
	if t != nil && t.AllEnabled() {
		return nil
	}
	return e.Address.write(inst)
}

// FindAddress returns the Address in this entry matching pc, or nil.
func (e *Entry) FindAddress(pc uintptr) *Address {
	if e == nil || e.Address == nil {
		return nil
	}
	return e.Address.find(pc)
}

// File binds a file name to an ordered (by line) sequence of entries.
type File struct {
	Name    string
	Entries []Entry
}

func (f *File) write(inst byte, dominated bool) error {
	if dominated {
		return nil
	}
	for i := range f.Entries {
		if err := f.Entries[i].Address.write(inst); err != nil {
			return err
		}
	}
	return nil
}

// FindAtOrAfter returns the first entry in f whose Line is >= line: "the
// next safepoint at or after the user's requested line." Returns nil if f
// is nil or no such entry exists. f.Entries is assumed sorted by Line;
// BuildCatalog guarantees that invariant.
func (f *File) FindAtOrAfter(line uint64) *Entry {
	if f == nil {
		return nil
	}
	for i := range f.Entries {
		if f.Entries[i].Line >= line {
			return &f.Entries[i]
		}
	}
	return nil
}
