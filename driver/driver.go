/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package driver assembles the heap, safepoint, and supervisor packages
// into the runtime's startup sequence: map the heap and bitset, install
// the safepoint catalog, install signal glue, and hand control to
// generated code with a populated Initialization Record.
package driver

import (
	"fmt"

	"github.com/gravwell/rtcore/config"
	"github.com/gravwell/rtcore/heap"
	"github.com/gravwell/rtcore/log"
	"github.com/gravwell/rtcore/safepoint"
	"github.com/gravwell/rtcore/supervisor"
)

// EntryFunc is the generated-code entry point. Its return value is
// ignored by Run; on return the OS reclaims every mapping Bootstrap built.
type EntryFunc func(*heap.InitRecord)

// Runtime bundles the three cores for one process lifetime.
type Runtime struct {
	Heap       *heap.InitRecord
	Safepoints *safepoint.Table
	Supervisor *supervisor.Supervisor
	Logger     *log.Logger

	interrupt *safepoint.InterruptHandler
}

// Catalog is the link-time-built safepoint data a generated-code build
// would normally embed; callers pass whatever they loaded or generated.
type Catalog map[string][]safepoint.LineEntry

// Bootstrap performs the driver-side startup sequence described for
// rtcored: build a logger, map the heap and bitset, build the safepoint
// catalog, install SIGINT glue, and construct a Supervisor. It does not
// call the entry function; call Runtime.Run for that once construction
// succeeds.
func Bootstrap(cfg config.Config, catalog Catalog) (*Runtime, error) {
	lg, err := cfg.GetLogger()
	if err != nil {
		return nil, fmt.Errorf("driver: logger: %w", err)
	}

	layout := heap.Layout{
		InitialHeap: cfg.InitialHeapBytes,
		MaxHeap:     cfg.MaxHeapBytes,
		NurseryFrac: cfg.NurseryFraction,
	}

	var bootErr error
	onFatal := func(file string, line int, err error) {
		bootErr = fmt.Errorf("%s:%d: %w", file, line, err)
		lg.Error("heap bootstrap failed", log.KV("file", file), log.KV("line", line), log.KVErr(err))
	}
	rec := heap.Bootstrap(layout, onFatal)
	if rec == nil {
		if bootErr == nil {
			bootErr = fmt.Errorf("driver: heap bootstrap failed")
		}
		return nil, bootErr
	}

	tbl := safepoint.BuildCatalog(catalog)

	var supOpts []supervisor.Option
	supOpts = append(supOpts, supervisor.WithLogger(lg))
	if cfg.CrashHandler != "" {
		supOpts = append(supOpts, supervisor.WithCrashHandler(cfg.CrashHandler))
	}
	if cfg.CrashLogPath != "" {
		cl, err := supervisor.OpenCrashLog(cfg.CrashLogPath)
		if err != nil {
			return nil, fmt.Errorf("driver: crash log: %w", err)
		}
		supOpts = append(supOpts, supervisor.WithCrashLog(cl))
	}
	sup := supervisor.New(supOpts...)

	rt := &Runtime{
		Heap:       rec,
		Safepoints: tbl,
		Supervisor: sup,
		Logger:     lg,
		interrupt:  safepoint.InstallInterruptHandler(tbl),
	}
	return rt, nil
}

// Run hands control to entry with the populated Initialization Record,
// matching the startup ABI: entry's return value is ignored.
func (rt *Runtime) Run(entry EntryFunc) {
	entry(rt.Heap)
}

// Close tears down the supervisor's reaper and SIGINT glue. It does not
// unmap the heap; per the startup ABI the OS reclaims those mappings
// when the process exits.
func (rt *Runtime) Close() {
	rt.interrupt.Stop()
	rt.Supervisor.Close()
}
