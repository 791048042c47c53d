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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitTerminal(t *testing.T, s *Supervisor, p *Process) ProcessState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := RetrieveState(ctx, p, true)
	require.NoError(t, err)
	return st
}

// scenario 1: echo roundtrip through a PROCESS_IN/PROCESS_OUT pair with cat.
func TestLaunchEchoRoundtrip(t *testing.T) {
	s := New()
	defer s.Close()

	p, err := s.Launch(context.Background(), LaunchSpec{
		Path: "/bin/cat",
		In:   ProcessIn,
		Out:  ProcessOut,
		Err:  StandardErr,
	})
	require.NoError(t, err)
	require.NotNil(t, p.Stdin)
	require.NotNil(t, p.Stdout)
	assert.Nil(t, p.Stderr)

	_, err = p.Stdin.WriteString("hello\n")
	require.NoError(t, err)
	require.NoError(t, p.Stdin.Flush())

	line, err := p.Stdout.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)

	require.NoError(t, DeletePipes(p))
	st := waitTerminal(t, s, p)
	assert.Equal(t, Done, st.State)
}

// scenario 2: exit code propagation.
func TestLaunchExitCode(t *testing.T) {
	s := New()
	defer s.Close()

	p, err := s.Launch(context.Background(), LaunchSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 7"},
		In:   StandardIn,
		Out:  StandardOut,
		Err:  StandardErr,
	})
	require.NoError(t, err)

	st := waitTerminal(t, s, p)
	assert.Equal(t, Done, st.State)
	assert.Equal(t, 7, st.Code)
}

// scenario 3: signal termination.
func TestLaunchSignalTermination(t *testing.T) {
	s := New()
	defer s.Close()

	p, err := s.Launch(context.Background(), LaunchSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "kill -TERM $$; sleep 5"},
		In:   StandardIn,
		Out:  StandardOut,
		Err:  StandardErr,
	})
	require.NoError(t, err)

	st := waitTerminal(t, s, p)
	assert.Equal(t, Terminated, st.State)
}

// scenario 4: non-blocking poll observes Running before the child exits.
func TestLaunchNonBlockingPoll(t *testing.T) {
	s := New()
	defer s.Close()

	p, err := s.Launch(context.Background(), LaunchSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 0.3"},
		In:   StandardIn,
		Out:  StandardOut,
		Err:  StandardErr,
	})
	require.NoError(t, err)

	st, err := RetrieveState(context.Background(), p, false)
	require.NoError(t, err)
	assert.Equal(t, Running, st.State)

	final := waitTerminal(t, s, p)
	assert.Equal(t, Done, final.State)
}

// scenario 5: stderr cross-wired onto the stdout pipe interleaves both
// streams and leaves the parent-side stderr stream nil.
func TestLaunchStderrCrossWire(t *testing.T) {
	s := New()
	defer s.Close()

	p, err := s.Launch(context.Background(), LaunchSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err >&2"},
		In:   StandardIn,
		Out:  ProcessOut,
		Err:  ProcessOut,
	})
	require.NoError(t, err)
	require.NotNil(t, p.Stdout)
	assert.Nil(t, p.Stderr)

	first, err := p.Stdout.ReadString('\n')
	require.NoError(t, err)
	second, err := p.Stdout.ReadString('\n')
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"out\n", "err\n"}, []string{first, second})

	waitTerminal(t, s, p)
}

func TestChildLookupMissingIsSafe(t *testing.T) {
	s := New()
	defer s.Close()
	rec, ok := s.Child(999999)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestReapFreesUnreferencedTerminalChildren(t *testing.T) {
	s := New()
	defer s.Close()

	p, err := s.Launch(context.Background(), LaunchSpec{
		Path: "/bin/sh",
		Args: []string{"-c", "exit 0"},
		In:   StandardIn,
		Out:  StandardOut,
		Err:  StandardErr,
	})
	require.NoError(t, err)
	waitTerminal(t, s, p)

	p.record.Status.Release()
	s.Reap()

	_, ok := s.Child(p.PID)
	assert.False(t, ok)
}
