/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package safepoint

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Table is the safepoint table: all file records, plus the global
// enabled flag and run mode that the debugger glue manipulates. It is
// built once (by BuildCatalog) and never mutated at runtime except for
// the bytes its entries point at and these two fields.
type Table struct {
	Files []File

	mu         sync.Mutex
	allEnabled bool
	runMode    atomic.Int32
}

// LineEntry is the input shape BuildCatalog accepts per file: a source
// line number paired with the machine-code addresses (and their group
// ids) a code generator emitted for that line. This data is normally
// link-time static; here it is supplied by whatever plays the code
// generator's role (a test, or a real generator wired in later).
type LineEntry struct {
	Line      uint64
	Addresses []Address
}

// BuildCatalog constructs a Table from per-file, per-line safepoint data.
// Entries within each file are sorted by line so FindAtOrAfter's linear
// scan is correct.
func BuildCatalog(files map[string][]LineEntry) *Table {
	t := &Table{}
	for name, lines := range files {
		f := File{Name: name}
		for _, le := range lines {
			al := le.Addresses
			f.Entries = append(f.Entries, Entry{
				Line:    le.Line,
				Address: &AddressList{Addresses: al},
			})
		}
		sortEntriesByLine(f.Entries)
		t.Files = append(t.Files, f)
	}
	return t
}

func sortEntriesByLine(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Line < entries[j-1].Line; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// AllEnabled reports whether the global trap is currently on.
func (t *Table) AllEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allEnabled
}

// RunMode returns the current debugger run mode.
func (t *Table) RunMode() RunMode {
	return RunMode(t.runMode.Load())
}

func (t *Table) setRunMode(m RunMode) {
	t.runMode.Store(int32(m))
}

// EnableAll sets every catalogued byte to INT3 and marks the table
// globally enabled. Idempotent: calling it again while already enabled
// does nothing.
func (t *Table) EnableAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allEnabled {
		return nil
	}
	if err := t.writeAll(INT3); err != nil {
		return err
	}
	t.allEnabled = true
	return nil
}

// DisableAll sets every catalogued byte back to NOP and clears the
// globally-enabled flag, returning whatever the flag's value was before
// the call (so DisableAll()'s return value answers "was it on"). Also
// idempotent.
func (t *Table) DisableAll() (wasEnabled bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasEnabled = t.allEnabled
	if !wasEnabled {
		return false, nil
	}
	if err = t.writeAll(NOP); err != nil {
		return wasEnabled, err
	}
	t.allEnabled = false
	return wasEnabled, nil
}

func (t *Table) writeAll(inst byte) error {
	for fi := range t.Files {
		for ei := range t.Files[fi].Entries {
			if err := t.Files[fi].Entries[ei].Address.write(inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindFile returns the File record with the given name, or nil.
func (t *Table) FindFile(name string) *File {
	for i := range t.Files {
		if t.Files[i].Name == name {
			return &t.Files[i]
		}
	}
	return nil
}

// writeByte patches the single catalogued instruction byte at addr. It is
// only ever called with NOP or INT3.
func writeByte(addr uintptr, inst byte) error {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "386" {
		return ErrUnsupportedArch
	}
	b := byteAt(addr)
	b[0] = inst
	return nil
}
