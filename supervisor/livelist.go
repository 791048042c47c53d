/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package supervisor

import (
	"sync"
	"sync/atomic"
)

// liveList is the Live Process List: a singly linked list of child
// records mutated by Launch, the reaper, and explicit cleanup, and
// traversed by the reaper. Topology mutations (insert/unlink) always hold
// topoMu, the Go-idiomatic substitute for "insertion happens with SIGCHLD
// blocked" (see DESIGN.md); head/next are atomic.Pointer so the reaper
// goroutine's traversal never observes a half-constructed node and needs
// no lock of its own to read the list.
type liveList struct {
	topoMu sync.Mutex
	head   atomic.Pointer[ChildRecord]
}

// insert adds rec at the head of the list. Must be called with topoMu
// held.
func (l *liveList) insert(rec *ChildRecord) {
	for {
		old := l.head.Load()
		rec.next.Store(old)
		if l.head.CompareAndSwap(old, rec) {
			return
		}
	}
}

// each calls fn for every record currently in the list. fn must not
// block; it runs with no lock held beyond the atomic load of each node,
// matching the reaper's async-signal-safety constraints.
func (l *liveList) each(fn func(*ChildRecord)) {
	for n := l.head.Load(); n != nil; n = n.next.Load() {
		fn(n)
	}
}

// find returns the record with the given pid, or nil; callers must check
// before dereferencing.
func (l *liveList) find(pid int) *ChildRecord {
	for n := l.head.Load(); n != nil; n = n.next.Load() {
		if n.PID == pid {
			return n
		}
	}
	return nil
}

// unlinkIf removes every record matching pred from the list. Must be
// called with topoMu held, since it mutates topology.
func (l *liveList) unlinkIf(pred func(*ChildRecord) bool) {
	var prev *ChildRecord
	for n := l.head.Load(); n != nil; {
		next := n.next.Load()
		if pred(n) {
			if prev == nil {
				l.head.Store(next)
			} else {
				prev.next.Store(next)
			}
		} else {
			prev = n
		}
		n = next
	}
}
