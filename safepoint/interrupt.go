/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package safepoint

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// InterruptHandler owns the SIGINT registration the debugger glue
// installs: on delivery it forces the table into Step mode and enables
// every catalogued safepoint, so generated code is forced into the
// debugger at the next one it hits.
type InterruptHandler struct {
	table *Table
	sig   chan os.Signal
	done  chan struct{}
}

// InstallInterruptHandler registers a SIGINT handler against t. The
// original installs this on an alternate signal stack with SA_RESTART;
// Go's os/signal delivery already runs the callback on an ordinary
// goroutine so there is no altstack equivalent to configure, and no
// stack-sensitive work is done here, so none is needed (see DESIGN.md).
func InstallInterruptHandler(t *Table) *InterruptHandler {
	h := &InterruptHandler{
		table: t,
		sig:   make(chan os.Signal, 1),
		done:  make(chan struct{}),
	}
	signal.Notify(h.sig, unix.SIGINT)
	go h.loop()
	return h
}

func (h *InterruptHandler) loop() {
	for {
		select {
		case <-h.sig:
			h.table.setRunMode(Step)
			h.table.EnableAll()
		case <-h.done:
			return
		}
	}
}

// Stop unregisters the handler. Safe to call once.
func (h *InterruptHandler) Stop() {
	signal.Stop(h.sig)
	close(h.done)
}
