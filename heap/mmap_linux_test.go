/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package heap

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func pageSize() uint64 { return uint64(unix.Getpagesize()) }

func noopFatal(t *testing.T) FatalFunc {
	return func(file string, line int, err error) {
		t.Fatalf("unexpected fatal at %s:%d: %v", file, line, err)
	}
}

// protectionOf scans /proc/self/maps for the mapping covering addr and
// returns its permission string (e.g. "rw-p"), or "" if no mapping covers
// addr (it is entirely unmapped). A reserved PROT_NONE region is listed
// with permissions "---p".
func protectionOf(t *testing.T, addr uintptr) string {
	t.Helper()
	f, err := os.Open("/proc/self/maps")
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		var lo, hi uint64
		fmt.Sscanf(bounds[0], "%x", &lo)
		fmt.Sscanf(bounds[1], "%x", &hi)
		if uint64(addr) >= lo && uint64(addr) < hi {
			return fields[1]
		}
	}
	return ""
}

func TestMapCommitsOnlyMin(t *testing.T) {
	ps := pageSize()
	min := ps
	max := ps * 4
	base := Map(min, max, noopFatal(t))
	require.NotZero(t, base)
	defer Unmap(base, max)

	committed := protectionOf(t, base)
	assert.Contains(t, committed, "w")
	assert.Contains(t, committed, "r")

	// writing into the committed range must not fault.
	b := mappingBytes(base)
	require.Len(t, b, int(max))
	b[0] = 0xAB
	b[min-1] = 0xCD
	assert.Equal(t, byte(0xAB), b[0])
}

func TestMapZeroMinReservesNoCommit(t *testing.T) {
	ps := pageSize()
	base := Map(0, ps*2, noopFatal(t))
	require.NotZero(t, base)
	defer Unmap(base, ps*2)

	prot := protectionOf(t, base)
	// a PROT_NONE region still shows up in /proc/self/maps but with no
	// r/w/x bits set.
	assert.NotContains(t, prot, "r")
	assert.NotContains(t, prot, "w")
}

func TestMapRejectsUnalignedSizes(t *testing.T) {
	var gotErr error
	fn := func(file string, line int, err error) { gotErr = err }
	base := Map(1, 1, fn)
	assert.Zero(t, base)
	assert.ErrorIs(t, gotErr, ErrBadSize)
}

func TestResizeGrowShrink(t *testing.T) {
	ps := pageSize()
	min := ps
	max := ps * 4
	base := Map(min, max, noopFatal(t))
	require.NotZero(t, base)
	defer Unmap(base, max)

	Resize(base, min, min+ps, noopFatal(t))
	b := mappingBytes(base)
	// now [min, min+ps) should be writable.
	b[min] = 0x42
	assert.Equal(t, byte(0x42), b[min])

	Resize(base, min+ps, min, noopFatal(t))
}

func TestResizeNoOpWhenEqual(t *testing.T) {
	ps := pageSize()
	base := Map(ps, ps*2, noopFatal(t))
	require.NotZero(t, base)
	defer Unmap(base, ps*2)

	// should not fatal, not panic, not change anything observable.
	Resize(base, ps, ps, noopFatal(t))
}

func TestUnmapNilBaseIsNoOp(t *testing.T) {
	assert.NoError(t, Unmap(0, 1234))
}

func TestBootstrapSmallLayout(t *testing.T) {
	ps := pageSize()
	layout := Layout{
		InitialHeap: ps * 8,
		MaxHeap:     ps * 64,
		NurseryFrac: 8,
	}
	rec := Bootstrap(layout, noopFatal(t))
	require.NotNil(t, rec)
	defer Unmap(rec.HeapStart, layout.MaxHeap)
	defer Unmap(rec.BitsetBase, rec.MaxMappedSize/bytesPerMarkByte+ps)
	defer Unmap(rec.MarkStackStart, markingStackSize)

	assert.Equal(t, rec.HeapStart, rec.HeapOldObjectsEnd)
	assert.Greater(t, rec.HeapTop, rec.HeapStart)
	assert.Greater(t, rec.HeapLimit, rec.HeapTop)
	assert.Equal(t, rec.BitsetBase-(rec.HeapStart>>6), rec.BiasedBitsetBase)
	assert.Zero(t, rec.BitsetBase%bitsetAlignment)

	require.NotNil(t, rec.UserStack)
	require.NotNil(t, rec.SystemStack)
	assert.Same(t, rec.SystemStack, rec.UserStack.Tail)
	assert.NotEqual(t, rec.UserStack.Base, rec.SystemStack.Base)
}
