/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command rtcored is the runtime's driver process: it bootstraps the
// heap, safepoint catalog, and supervisor, then blocks waiting for a
// shutdown signal.
package main

import (
	"flag"
	"log"

	"github.com/gravwell/rtcore/config"
	"github.com/gravwell/rtcore/debug"
	"github.com/gravwell/rtcore/driver"
	"github.com/gravwell/rtcore/heap"
	rtlog "github.com/gravwell/rtcore/log"
	"github.com/gravwell/rtcore/utils"
)

const defConfigLoc = `/opt/rtcore/etc/rtcored.cfg`

var (
	cfgFlag = flag.String("config-override", "", "Override config file path")
	cfgFile string
)

func init() {
	cfgFile = defConfigLoc
	flag.Parse()
	if *cfgFlag != `` {
		cfgFile = *cfgFlag
	}
}

func main() {
	c, err := config.Load(cfgFile)
	if err != nil {
		log.Fatal("failed to open config file ", cfgFile, ": ", err)
	}
	if err := config.WriteSnapshot(cfgFile+".resolved", c); err != nil {
		log.Print("failed to write resolved config snapshot: ", err)
	}

	rt, err := driver.Bootstrap(c, nil)
	if err != nil {
		log.Fatal("failed to bootstrap runtime: ", err)
	}
	defer rt.Close()

	go debug.HandleDebugSignals("rtcored", rt.Dumpers()...)

	rt.Logger.Info("runtime bootstrapped")
	rt.Run(func(*heap.InitRecord) {
		// Generated code's entry point runs here. rtcored on its own
		// just keeps the supervisor and safepoint glue alive.
	})

	sig := utils.WaitForQuit()
	rt.Logger.Info("received shutdown signal, stopping", rtlog.KV("signal", sig.String()))
}
