/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gravwell/rtcore/supervisor"
)

// tailLimit is a pflag.Value: 0 or unset means "no limit", otherwise it
// caps how many of the most recent entries are shown.
type tailLimit int

func (t *tailLimit) String() string { return strconv.Itoa(int(*t)) }
func (t *tailLimit) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("limit must be >= 0")
	}
	*t = tailLimit(n)
	return nil
}
func (t *tailLimit) Type() string { return "int" }

func newCrashesCmd() *cobra.Command {
	var dbPath string
	var limit tailLimit
	cmd := &cobra.Command{
		Use:   "crashes",
		Short: "List children rtcored recorded as having terminated abnormally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrashes(dbPath, int(limit))
		},
	}
	cmd.Flags().StringVarP(&dbPath, "db", "d", "/var/lib/rtcore/crashes.db", "path to the crash log")
	cmd.Flags().VarP(&limit, "limit", "n", "show only the N most recent entries (0 = all)")
	return cmd
}

func runCrashes(dbPath string, limit int) error {
	cl, err := supervisor.OpenCrashLog(dbPath)
	if err != nil {
		return fmt.Errorf("rtctl: open crash log: %w", err)
	}
	defer cl.Close()

	entries, err := cl.Entries()
	if err != nil {
		return fmt.Errorf("rtctl: read crash log: %w", err)
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "PID", "Raw Status", "When"})
	for _, e := range entries {
		flds := strings.SplitN(e, "\t", 4)
		if len(flds) != 4 {
			continue
		}
		table.Append(flds)
	}
	table.Render()

	if len(entries) == 0 {
		fmt.Println("no crashes recorded")
	} else {
		fmt.Printf("%d recorded\n", len(entries))
	}
	return nil
}

var _ pflag.Value = (*tailLimit)(nil)
