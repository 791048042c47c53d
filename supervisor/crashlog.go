/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package supervisor

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var crashBucket = []byte("crashes")

// CrashLog is a durable record of children that terminated abnormally,
// kept so an operator restarting rtcored doesn't lose the history of
// what crashed across a restart. Not part of the core launch/query
// contract; Supervisor only touches it if WithCrashLog is given.
type CrashLog struct {
	db *bbolt.DB
}

// OpenCrashLog opens (creating if needed) a bbolt-backed crash ledger at
// path.
func OpenCrashLog(path string) (*CrashLog, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("supervisor: open crash log: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(crashBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &CrashLog{db: db}, nil
}

// Record appends a crash entry keyed by a monotonically increasing
// sequence number, so iteration with ForEach yields insertion order.
func (c *CrashLog) Record(id string, pid int, rawStatus int) {
	_ = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(crashBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		val := []byte(fmt.Sprintf("%s\t%d\t%d\t%d", id, pid, rawStatus, time.Now().UnixNano()))
		return b.Put(key, val)
	})
}

// Entries returns every recorded crash in insertion order.
func (c *CrashLog) Entries() ([]string, error) {
	var out []string
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(crashBucket)
		return b.ForEach(func(_, v []byte) error {
			out = append(out, string(v))
			return nil
		})
	})
	return out, err
}

// Close releases the underlying bbolt file handle.
func (c *CrashLog) Close() error {
	return c.db.Close()
}
