/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package heap

import "sync"

// mappingRegistry keeps the []byte returned by unix.Mmap alive and
// addressable by base pointer, since golang.org/x/sys/unix's Munmap
// requires the exact slice it handed back at Mmap time (it tracks active
// mappings internally by address to guard against double-unmap). Resize
// and Unmap look a mapping up here rather than reconstructing a slice
// header from a bare uintptr.
var (
	mappingMu sync.Mutex
	mappings  = map[uintptr][]byte{}
)

func registerMapping(base uintptr, b []byte) {
	mappingMu.Lock()
	mappings[base] = b
	mappingMu.Unlock()
}

func unregisterMapping(base uintptr) {
	mappingMu.Lock()
	delete(mappings, base)
	mappingMu.Unlock()
}

func mappingBytes(base uintptr) []byte {
	mappingMu.Lock()
	defer mappingMu.Unlock()
	return mappings[base]
}
