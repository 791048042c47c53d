/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"fmt"

	"github.com/google/renameio"
)

// WriteSnapshot persists the resolved configuration as INI text at path,
// atomically: renameio writes to a temp file on the same filesystem as
// path (os.TempDir() if it shares that filesystem, otherwise path's own
// directory) and renames over path, so a reader never observes a half-written file and
// a crash mid-write never corrupts the previous snapshot.
func WriteSnapshot(path string, c Config) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	body := fmt.Sprintf(`[Global]
Log-File=%s
Log-Level=%s
Initial-Heap-MB=%d
Max-Heap-MB=%d
Nursery-Fraction=%d
Safepoint-Catalog=%s
Crash-Log=%s

[Error-Handler]
Exec=%s
`,
		c.LogFile, c.LogLevel,
		c.InitialHeapBytes/(1024*1024), c.MaxHeapBytes/(1024*1024), c.NurseryFraction,
		c.SafepointCatalog, c.CrashLogPath, c.CrashHandler)

	if _, err := t.Write([]byte(body)); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
