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
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FatalFunc is invoked on every unrecoverable environment failure in this
// package: reservation/commit/protection failures and bitset misalignment.
// It implements a "print file:line and the decoded OS error, exit(-1)"
// contract; callers normally wire it to a *log.Logger.FatalCode.
// A nil FatalFunc falls back to printing to stderr and calling os.Exit.
type FatalFunc func(file string, line int, err error)

func callFatal(fn FatalFunc, err error) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "unknown", 0
	}
	if fn != nil {
		fn(file, line, err)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s:%d] %s\n", file, line, err)
	osExit(-1)
}

// Map reserves max bytes of virtual address space with no access, then
// commits the first min bytes as readable, writable, and executable. Both
// sizes must be whole multiples of the system page size; the caller
// (normally the driver) is responsible for rounding. Any reservation or
// commit failure is fatal.
func Map(min, max uint64, onFatal FatalFunc) (base uintptr) {
	pageSize := uint64(unix.Getpagesize())
	if min%pageSize != 0 || max%pageSize != 0 {
		callFatal(onFatal, fmt.Errorf("%w: min=%d max=%d page=%d", ErrBadSize, min, max, pageSize))
		return 0
	}

	b, err := unix.Mmap(-1, 0, int(max), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		callFatal(onFatal, fmt.Errorf("mmap(%d) reservation failed: %w", max, err))
		return 0
	}
	base = uintptr(unsafe.Pointer(&b[0]))

	if min > 0 {
		if err := unix.Mprotect(b[:min], unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
			unix.Munmap(b)
			callFatal(onFatal, fmt.Errorf("mprotect(rwx, %d) commit failed: %w", min, err))
			return 0
		}
	}
	registerMapping(base, b)
	return base
}

// Resize grows the committed portion of a mapping obtained from Map by
// committing [old,new); it shrinks by decommitting [new,old). On Linux
// both directions are expressed as protection changes; shrinking also
// issues MADV_DONTNEED so the kernel can reclaim the physical pages,
// which is this module's substitute for a dedicated "decommit" API
// (Windows has VirtualFree(MEM_DECOMMIT); POSIX has no equivalent).
func Resize(base uintptr, old, new uint64, onFatal FatalFunc) {
	if old == new {
		return
	}
	b := mappingBytes(base)
	if b == nil {
		callFatal(onFatal, fmt.Errorf("resize: unknown base %#x", base))
		return
	}
	if new > old {
		region := b[old:new]
		if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
			callFatal(onFatal, fmt.Errorf("mprotect(rwx, grow %d->%d) failed: %w", old, new, err))
		}
		return
	}
	region := b[new:old]
	if err := unix.Mprotect(region, unix.PROT_NONE); err != nil {
		callFatal(onFatal, fmt.Errorf("mprotect(none, shrink %d->%d) failed: %w", old, new, err))
		return
	}
	if err := unix.Madvise(region, unix.MADV_DONTNEED); err != nil {
		callFatal(onFatal, fmt.Errorf("madvise(dontneed, shrink %d->%d) failed: %w", old, new, err))
	}
}

// Unmap releases the entire reservation. It is a no-op if base is zero.
func Unmap(base uintptr, size uint64) error {
	if base == 0 {
		return nil
	}
	b := mappingBytes(base)
	if b == nil {
		return fmt.Errorf("unmap: unknown base %#x", base)
	}
	if err := unix.Munmap(b); err != nil {
		return err
	}
	unregisterMapping(base)
	return nil
}

var osExit = os.Exit
