/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package safepoint

import "unsafe"

// byteAt views the single catalogued byte at addr as a 1-byte slice so it
// can be overwritten in place. The address always points into generated
// code text that the driver mapped executable; this package never
// allocates or frees it.
func byteAt(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), 1)
}

// NewAddress builds a safepoint Address for the machine-code byte at addr
// in the given group. Exposed for whatever plays the code generator's
// role when assembling a Table with BuildCatalog.
func NewAddress(addr uintptr, group uint64) Address {
	return Address{addr: addr, Group: group}
}

// PC returns the machine-code address this safepoint Address patches.
func (a Address) PC() uintptr { return a.addr }
