/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	c, err := loadFrom(strings.NewReader(`[Global]
`))
	require.NoError(t, err)
	assert.Equal(t, uint64(defaultInitialHeapMB*1024*1024), c.InitialHeapBytes)
	assert.Equal(t, uint64(defaultMaxHeapMB*1024*1024), c.MaxHeapBytes)
	assert.Equal(t, uint64(defaultNurseryFrac), c.NurseryFraction)
	assert.Equal(t, defaultLogLevel, c.LogLevel)
}

func TestLoadFromOverrides(t *testing.T) {
	c, err := loadFrom(strings.NewReader(`[Global]
Log-Level=DEBUG
Initial-Heap-MB=16
Max-Heap-MB=64
Nursery-Fraction=4
Safepoint-Catalog=/etc/rtcored/safepoints.bin
`))
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, uint64(16*1024*1024), c.InitialHeapBytes)
	assert.Equal(t, uint64(64*1024*1024), c.MaxHeapBytes)
	assert.Equal(t, uint64(4), c.NurseryFraction)
	assert.Equal(t, "/etc/rtcored/safepoints.bin", c.SafepointCatalog)
}

func TestLoadFromRejectsInitialAboveMax(t *testing.T) {
	_, err := loadFrom(strings.NewReader(`[Global]
Initial-Heap-MB=128
Max-Heap-MB=64
`))
	assert.Error(t, err)
}

func TestLoadFromRejectsBadLogLevel(t *testing.T) {
	_, err := loadFrom(strings.NewReader(`[Global]
Log-Level=NOT_A_LEVEL
`))
	assert.Error(t, err)
}

func TestLoadFromRejectsOversizedFile(t *testing.T) {
	huge := strings.Repeat("#", int(maxConfigSize)+1)
	_, err := loadFrom(strings.NewReader(huge))
	assert.Error(t, err)
}

func TestWriteSnapshotRoundtrips(t *testing.T) {
	c, err := loadFrom(strings.NewReader(`[Global]
Log-Level=DEBUG
Initial-Heap-MB=16
Max-Heap-MB=64
Nursery-Fraction=4
`))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rtcored.cfg.resolved")
	require.NoError(t, WriteSnapshot(path, c))

	fin, err := os.Open(path)
	require.NoError(t, err)
	defer fin.Close()

	reread, err := loadFrom(fin)
	require.NoError(t, err)
	assert.Equal(t, c, reread)
}

func TestGetLoggerDiscardWhenNoFile(t *testing.T) {
	c, err := loadFrom(strings.NewReader(`[Global]
`))
	require.NoError(t, err)
	l, err := c.GetLogger()
	require.NoError(t, err)
	require.NotNil(t, l)
}
