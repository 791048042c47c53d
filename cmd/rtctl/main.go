/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command rtctl is the operator's inspection tool: it has no channel
// back into a running rtcored (the runtime keeps no IPC surface, per
// its persisted-state contract of "none, all state is in-process"), so
// it works against the one thing rtcored does persist: the crash log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rtctl",
		Short: "Inspect rtcored's persisted crash history",
	}
	root.AddCommand(newCrashesCmd())
	return root
}
