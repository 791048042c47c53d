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
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"github.com/gravwell/rtcore/log"
)

// LaunchSpec is the input to Launch: executable path, argument vector,
// per-stream redirection, and the optional knobs a launch call carries
// (caller id, cleanup-on-free, working directory, environment).
type LaunchSpec struct {
	Path string
	Args []string

	In  StreamSpec
	Out StreamSpec
	Err StreamSpec

	// ID is the optional caller-supplied identifier. If empty, Launch
	// mints one with uuid.NewString so the crash log always has a stable
	// key for the child.
	ID string

	// CleanupFiles requests that the supervisor close the parent-side
	// pipe streams when the record is freed.
	CleanupFiles bool

	Dir string
	// Env is nil to inherit the parent's environment, or an explicit
	// vector to replace it entirely.
	Env []string
}

type osPipe struct {
	r *os.File
	w *os.File
}

func closeAllPipes(pipes map[StreamSpec]*osPipe) {
	for _, p := range pipes {
		p.r.Close()
		p.w.Close()
	}
}

// Supervisor launches, tracks, and reaps child processes. Build one with
// New; it owns the live list, the SIGCHLD reaper goroutine, and (once
// configured) a legacy-handler callback and a crash log.
type Supervisor struct {
	list liveList
	lg   *log.Logger

	reaper *reaper

	legacy       func(pid int, status int)
	crashLog     *CrashLog
	crashHandler string
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithLogger attaches a logger; defaults to a discard logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Supervisor) { s.lg = l }
}

// WithCrashLog attaches a durable crash ledger (see crashlog.go).
func WithCrashLog(cl *CrashLog) Option {
	return func(s *Supervisor) { s.crashLog = cl }
}

// WithCrashHandler stores a crash-handler command on the Supervisor. The
// Supervisor does not execute it; abnormal exits are recorded only through
// WithCrashLog.
func WithCrashHandler(path string) Option {
	return func(s *Supervisor) { s.crashHandler = path }
}

// New builds a Supervisor and installs its SIGCHLD reaper.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{lg: log.NewDiscardLogger()}
	for _, o := range opts {
		o(s)
	}
	s.reaper = newReaper(s)
	s.reaper.start()
	return s
}

// RegisterLegacyChildHandler installs a callback invoked synchronously
// from the reaper after its own bookkeeping runs, for embedders that need
// single-global-handler chaining semantics. Go's os/signal fan-out
// already lets multiple independent listeners observe the same signal,
// so this exists for API parity rather than as the primary mechanism.
func (s *Supervisor) RegisterLegacyChildHandler(f func(pid int, status int)) {
	s.legacy = f
}

// Launch starts a child process with the requested stream wiring.
// Inputs are validated for obvious misuse but no partial Process record
// is ever published: every error path below returns before the record
// is inserted into the live list.
func (s *Supervisor) Launch(ctx context.Context, spec LaunchSpec) (*Process, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("supervisor: empty executable path")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.list.topoMu.Lock()
	defer s.list.topoMu.Unlock()

	// Free whatever is eligible before growing the list further, matching
	// the free-at-next-launch-or-shutdown cadence: topoMu is already held,
	// the Go-idiomatic equivalent of doing this with SIGCHLD blocked.
	s.reapLocked()

	pipes := map[StreamSpec]*osPipe{}
	makePipe := func(sp StreamSpec) error {
		if !sp.isPipe() {
			return nil
		}
		if _, ok := pipes[sp]; ok {
			return nil
		}
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("supervisor: pipe for %s: %w", sp, err)
		}
		pipes[sp] = &osPipe{r: r, w: w}
		return nil
	}
	if err := makePipe(spec.In); err != nil {
		return nil, err
	}
	if err := makePipe(spec.Out); err != nil {
		closeAllPipes(pipes)
		return nil, err
	}
	if err := makePipe(spec.Err); err != nil {
		closeAllPipes(pipes)
		return nil, err
	}

	// Not exec.CommandContext: its context watchdog goroutine only exits
	// once Wait is called, and the reaper — not cmd.Wait — owns reaping
	// here, so CommandContext would leak a goroutine per launched child.
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}

	switch spec.In {
	case StandardIn:
		cmd.Stdin = os.Stdin
	case ProcessIn:
		cmd.Stdin = pipes[ProcessIn].r
	}
	switch spec.Out {
	case StandardOut:
		cmd.Stdout = os.Stdout
	case ProcessOut:
		cmd.Stdout = pipes[ProcessOut].w
	case ProcessErr:
		cmd.Stdout = pipes[ProcessErr].w
	}
	switch spec.Err {
	case StandardErr:
		cmd.Stderr = os.Stderr
	case ProcessErr:
		cmd.Stderr = pipes[ProcessErr].w
	case ProcessOut:
		cmd.Stderr = pipes[ProcessOut].w
	}

	if err := cmd.Start(); err != nil {
		closeAllPipes(pipes)
		return nil, err
	}

	// parent closes the child-side ends now that the child has them.
	if p, ok := pipes[ProcessIn]; ok {
		p.r.Close()
	}
	if p, ok := pipes[ProcessOut]; ok {
		p.w.Close()
	}
	if p, ok := pipes[ProcessErr]; ok {
		p.w.Close()
	}

	status := newProcessStatus()
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	rec := &ChildRecord{PID: cmd.Process.Pid, ID: id, Status: status, CleanupFiles: spec.CleanupFiles}

	if p, ok := pipes[ProcessIn]; ok {
		rec.stdinF = p.w
		rec.Stdin = bufio.NewWriter(p.w)
	}
	if p, ok := pipes[ProcessOut]; ok {
		rec.stdoutF = p.r
		rec.Stdout = bufio.NewReader(p.r)
	}
	if p, ok := pipes[ProcessErr]; ok {
		rec.stderrF = p.r
		rec.Stderr = bufio.NewReader(p.r)
	}

	s.list.insert(rec)
	s.lg.Info("launched child", log.KV("pid", rec.PID), log.KV("id", rec.ID), log.KV("path", spec.Path))

	return &Process{
		PID:    rec.PID,
		ID:     rec.ID,
		Stdin:  rec.Stdin,
		Stdout: rec.Stdout,
		Stderr: rec.Stderr,
		record: rec,
	}, nil
}

// Child looks up the live record for pid. Callers must check ok before
// dereferencing the result.
func (s *Supervisor) Child(pid int) (*ChildRecord, bool) {
	rec := s.list.find(pid)
	return rec, rec != nil
}

// Children returns a snapshot slice of every currently-live child record.
func (s *Supervisor) Children() []*ChildRecord {
	var out []*ChildRecord
	s.list.each(func(c *ChildRecord) { out = append(out, c) })
	return out
}

// closeChildPipes closes c's non-nil parent-side pipe streams in order
// (stdin, stdout, stderr), returning the first error encountered.
func closeChildPipes(c *ChildRecord) error {
	var firstErr error
	for _, f := range []*os.File{c.stdinF, c.stdoutF, c.stderrF} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeletePipes closes p's non-nil parent-side pipe streams in order
// (stdin, stdout, stderr), returning the first error encountered.
func DeletePipes(p *Process) error {
	if p == nil || p.record == nil {
		return nil
	}
	return closeChildPipes(p.record)
}

// reapLocked unlinks and frees every live record that is both Terminal
// and no longer Referenced, closing that record's parent-side pipes
// first when CleanupFiles was requested at Launch. Callers must hold
// topoMu.
func (s *Supervisor) reapLocked() {
	s.list.unlinkIf(func(c *ChildRecord) bool {
		if !c.Status.Terminal() || c.Status.Referenced() {
			return false
		}
		if c.CleanupFiles {
			closeChildPipes(c)
		}
		return true
	})
}

// Reap unlinks and frees every live record that is both Terminal and no
// longer Referenced. Launch already does this at the start of every call;
// Reap exists for callers that want the same cadence between launches,
// typically periodically and at shutdown.
func (s *Supervisor) Reap() {
	s.list.topoMu.Lock()
	defer s.list.topoMu.Unlock()
	s.reapLocked()
}

// Close reaps one last time, then stops the reaper goroutine. Live
// children are not killed; callers that want a clean shutdown should
// signal and wait for them first.
func (s *Supervisor) Close() {
	s.Reap()
	s.reaper.stop()
}
