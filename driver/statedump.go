/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package driver

import "github.com/gravwell/rtcore/debug"

type heapDumper struct{ rt *Runtime }

func (d heapDumper) Name() string       { return "heap" }
func (d heapDumper) State() interface{} { return d.rt.Heap }

type safepointDumper struct{ rt *Runtime }

func (d safepointDumper) Name() string       { return "safepoints" }
func (d safepointDumper) State() interface{} { return d.rt.Safepoints }

type supervisorDumper struct{ rt *Runtime }

func (d supervisorDumper) Name() string       { return "children" }
func (d supervisorDumper) State() interface{} { return d.rt.Supervisor.Children() }

// Dumpers returns the go-spew state dumpers debug.HandleDebugSignals
// wants for a SIGUSR1 snapshot of this runtime.
func (rt *Runtime) Dumpers() []debug.StateDumper {
	return []debug.StateDumper{
		heapDumper{rt},
		safepointDumper{rt},
		supervisorDumper{rt},
	}
}
