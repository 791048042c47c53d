/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package supervisor

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gravwell/rtcore/log"
)

// reaper is the Go-idiomatic substitute for an async-signal-context
// SIGCHLD handler: a dedicated goroutine woken by os/signal's channel
// delivery, which then polls every live child with Wait4(WNOHANG) rather
// than a blind wait(-1), since Go never hands us a raw siginfo_t to read
// the dead pid from directly.
//
// The reaper only updates ProcessStatus fields, logs, invokes the legacy
// callback, and appends abnormal exits to the crash log; it never unlinks
// list nodes. Freeing dead records is
// Supervisor.Reap's job, called from ordinary (non-signal) code, which
// keeps live-list topology mutation entirely out of the signal path.
type reaper struct {
	sup  *Supervisor
	sigc chan os.Signal
	quit chan struct{}
	done chan struct{}
}

func newReaper(s *Supervisor) *reaper {
	return &reaper{
		sup:  s,
		sigc: make(chan os.Signal, 8),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (r *reaper) start() {
	signal.Notify(r.sigc, syscall.SIGCHLD)
	go r.loop()
}

func (r *reaper) loop() {
	// Poll on a slow ticker too: a child that exits between Launch's
	// insert and the first delivered SIGCHLD must not wait forever if
	// signals get coalesced, which POSIX explicitly allows.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.sigc:
			r.reapOnce()
		case <-ticker.C:
			r.reapOnce()
		case <-r.quit:
			signal.Stop(r.sigc)
			close(r.done)
			return
		}
	}
}

func (r *reaper) reapOnce() {
	r.sup.list.each(func(c *ChildRecord) {
		if c.Status.CodeSet() && c.Status.Terminal() {
			return
		}
		var ws unix.WaitStatus
		pid, err := unix.Wait4(c.PID, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid == 0 {
			return
		}
		c.Status.record(ws)
		r.sup.lg.Debug("reaped child status", log.KV("pid", c.PID), log.KV("status", int(ws)))
		if r.sup.legacy != nil {
			r.sup.legacy(c.PID, int(ws))
		}
		if r.sup.crashLog != nil && (ws.Signaled() || (ws.Exited() && ws.ExitStatus() != 0)) {
			r.sup.crashLog.Record(c.ID, c.PID, int(ws))
		}
	})
}

func (r *reaper) stop() {
	close(r.quit)
	<-r.done
}
