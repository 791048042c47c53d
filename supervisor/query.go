/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package supervisor

import (
	"context"
	"sync/atomic"
)

// RetrieveState reports a child's current state. With wait=false it
// returns the last status the reaper observed (Running/0 if none yet).
// With wait=true
// it blocks on the record's condition variable, woken each time the
// reaper records a new status, until Terminal is true or ctx is done —
// the Go substitute for sigsuspend-until-signaled.
func RetrieveState(ctx context.Context, p *Process, wait bool) (ProcessState, error) {
	if p == nil || p.record == nil {
		return ProcessState{}, nil
	}
	st := p.record.Status

	if !wait {
		return deriveState(st.CodeSet(), st.RawStatus()), nil
	}

	var abandoned atomic.Bool
	done := make(chan struct{})
	go func() {
		st.condMu.Lock()
		for !st.Terminal() && !abandoned.Load() {
			st.cond.Wait()
		}
		st.condMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return deriveState(st.CodeSet(), st.RawStatus()), nil
	case <-ctx.Done():
		// Flip abandoned and nudge the waiter so it exits its loop
		// instead of leaking until the child eventually terminates.
		abandoned.Store(true)
		st.condMu.Lock()
		st.cond.Broadcast()
		st.condMu.Unlock()
		<-done
		return ProcessState{}, ctx.Err()
	}
}
