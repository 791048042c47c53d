/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package supervisor

import (
	"bufio"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ProcessStatus is shared between the supervisor and whatever wrapper the
// embedder's managed code holds: CodeSet stays false until the reaper's
// first observed status transition; Referenced is the handshake bit the
// managed wrapper's finalizer clears. A record is free-eligible exactly
// when CodeSet is true, the status is Terminal, and Referenced is false.
type ProcessStatus struct {
	codeSet    atomic.Bool
	statusCode atomic.Int32
	referenced atomic.Bool

	cond   *sync.Cond
	condMu sync.Mutex
}

func newProcessStatus() *ProcessStatus {
	ps := &ProcessStatus{}
	ps.cond = sync.NewCond(&ps.condMu)
	ps.referenced.Store(true)
	ps.statusCode.Store(-1)
	return ps
}

// CodeSet reports whether the reaper has observed at least one status
// transition for this child.
func (p *ProcessStatus) CodeSet() bool { return p.codeSet.Load() }

// RawStatus returns the raw OS wait status last observed by the reaper.
func (p *ProcessStatus) RawStatus() unix.WaitStatus {
	return unix.WaitStatus(p.statusCode.Load())
}

// Referenced reports whether managed code still holds a handle to this
// record's wrapper.
func (p *ProcessStatus) Referenced() bool { return p.referenced.Load() }

// Release clears the referenced bit; call from the managed wrapper's
// finalizer. Once both Released and Terminal, the record is free-eligible.
func (p *ProcessStatus) Release() { p.referenced.Store(false) }

// Terminal reports whether the last observed status is a terminal one
// (WIFEXITED or WIFSIGNALED).
func (p *ProcessStatus) Terminal() bool {
	if !p.codeSet.Load() {
		return false
	}
	ws := p.RawStatus()
	return ws.Exited() || ws.Signaled()
}

func (p *ProcessStatus) record(ws unix.WaitStatus) {
	p.statusCode.Store(int32(ws))
	p.codeSet.Store(true)
	p.condMu.Lock()
	p.cond.Broadcast()
	p.condMu.Unlock()
}

// State enumerates the four observable process states.
type State int

const (
	Running State = iota
	Done
	Terminated
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Done:
		return "done"
	case Terminated:
		return "terminated"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ProcessState is the tagged query result: (state, code).
type ProcessState struct {
	State State
	Code  int
}

func deriveState(codeSet bool, ws unix.WaitStatus) ProcessState {
	if !codeSet {
		return ProcessState{State: Running}
	}
	switch {
	case ws.Exited():
		return ProcessState{State: Done, Code: ws.ExitStatus()}
	case ws.Signaled():
		return ProcessState{State: Terminated, Code: int(ws.Signal())}
	case ws.Stopped():
		return ProcessState{State: Stopped, Code: int(ws.StopSignal())}
	default:
		return ProcessState{State: Running}
	}
}

// ChildRecord is the Child Process Record: a live entry in the
// supervisor's list, readable from the reaper goroutine concurrently
// with ordinary mutator code.
type ChildRecord struct {
	PID    int
	ID     string
	Stdin  *bufio.Writer
	Stdout *bufio.Reader
	Stderr *bufio.Reader

	stdinF  *os.File
	stdoutF *os.File
	stderrF *os.File

	// CleanupFiles mirrors LaunchSpec.CleanupFiles: when set, the parent-side
	// pipe streams above are closed at free time (see reapLocked).
	CleanupFiles bool

	Status *ProcessStatus

	next atomic.Pointer[ChildRecord]
}

// Process is the caller-facing out-parameter populated by Launch.
type Process struct {
	PID    int
	ID     string
	Stdin  *bufio.Writer
	Stdout *bufio.Reader
	Stderr *bufio.Reader

	record *ChildRecord
}
