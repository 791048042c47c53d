/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package safepoint

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrOf(b *byte) uintptr {
	return uintptr(unsafe.Pointer(b))
}

// scratchAddrs allocates n NOP-initialized bytes and returns safepoint
// Addresses pointing at them, standing in for "machine-code text" without
// needing an executable mapping (the patch is a pure byte-store test).
func scratchAddrs(t *testing.T, n int) (backing []byte, addrs []Address) {
	t.Helper()
	backing = make([]byte, n)
	for i := range backing {
		backing[i] = NOP
	}
	addrs = make([]Address, n)
	for i := range backing {
		addrs[i] = NewAddress(addrOf(&backing[i]), uint64(i))
	}
	return
}

func TestSafepointToggleScenario(t *testing.T) {
	// scenario 6: a synthetic catalog of two addresses [A, B].
	backing, addrs := scratchAddrs(t, 2)
	tbl := BuildCatalog(map[string][]LineEntry{
		"f.go": {
			{Line: 10, Addresses: addrs},
		},
	})
	entry := tbl.FindFile("f.go").FindAtOrAfter(0)
	require.NotNil(t, entry)

	require.NoError(t, tbl.EnableAll())
	assert.Equal(t, INT3, backing[0])
	assert.Equal(t, INT3, backing[1])

	// write_breakpoint while enabled: no effect, global dominates.
	require.NoError(t, entry.WriteBreakpoint(tbl, NOP))
	assert.Equal(t, INT3, backing[0])
	assert.Equal(t, INT3, backing[1])

	wasEnabled, err := tbl.DisableAll()
	require.NoError(t, err)
	assert.True(t, wasEnabled)
	assert.Equal(t, NOP, backing[0])
	assert.Equal(t, NOP, backing[1])

	require.NoError(t, entry.WriteBreakpoint(tbl, INT3))
	assert.Equal(t, INT3, backing[0])
	assert.Equal(t, INT3, backing[1])
}

func TestEnableDisableIdempotent(t *testing.T) {
	backing, addrs := scratchAddrs(t, 1)
	tbl := BuildCatalog(map[string][]LineEntry{"f": {{Line: 1, Addresses: addrs}}})

	require.NoError(t, tbl.EnableAll())
	require.NoError(t, tbl.EnableAll())
	assert.Equal(t, INT3, backing[0])

	first, err := tbl.DisableAll()
	require.NoError(t, err)
	assert.True(t, first)

	second, err := tbl.DisableAll()
	require.NoError(t, err)
	assert.False(t, second)
	assert.Equal(t, NOP, backing[0])
}

func TestFindSemanticsScenario(t *testing.T) {
	// scenario 7: file "f" with lines [10, 20, 30].
	mkEntries := func(lines ...uint64) []LineEntry {
		out := make([]LineEntry, len(lines))
		for i, l := range lines {
			_, addrs := scratchAddrs(t, 1)
			out[i] = LineEntry{Line: l, Addresses: addrs}
		}
		return out
	}
	tbl := BuildCatalog(map[string][]LineEntry{
		"f": mkEntries(30, 10, 20), // deliberately unsorted input
	})
	f := tbl.FindFile("f")
	require.NotNil(t, f)

	line10 := f.FindAtOrAfter(1)
	require.NotNil(t, line10)
	assert.EqualValues(t, 10, line10.Line)

	line20 := f.FindAtOrAfter(20)
	require.NotNil(t, line20)
	assert.EqualValues(t, 20, line20.Line)

	line30 := f.FindAtOrAfter(25)
	require.NotNil(t, line30)
	assert.EqualValues(t, 30, line30.Line)

	assert.Nil(t, f.FindAtOrAfter(31))

	var nilFile *File
	assert.Nil(t, nilFile.FindAtOrAfter(10))
}

func TestFindAddress(t *testing.T) {
	backing, addrs := scratchAddrs(t, 3)
	_ = backing
	entry := Entry{Line: 5, Address: &AddressList{Addresses: addrs}}

	found := entry.FindAddress(addrs[1].PC())
	require.NotNil(t, found)
	assert.Equal(t, addrs[1].Group, found.Group)

	assert.Nil(t, entry.FindAddress(0))
}
