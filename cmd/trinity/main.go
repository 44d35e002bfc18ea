//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slox3r/trinity/config"
	"github.com/slox3r/trinity/harness"
	"github.com/slox3r/trinity/log"
	"github.com/slox3r/trinity/syscalls"
)

func main() {
	cmd, _ := newRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	config   string
	children int
	seed     int64
	noLog    bool
	quiet    int
	mono     bool
	logDir   string
	syscalls []string
	group    string
	ops      uint64
	childOps uint64
	live     bool
	ktrace   bool
}

func (f *flags) params(cmd *cobra.Command) (*config.Params, error) {
	params := config.Default()
	if len(f.config) > 0 {
		var err error
		params, err = config.Load(f.config)
		if err != nil {
			return nil, err
		}
	}
	set := cmd.Flags().Changed
	if set("children") {
		params.Children = f.children
	}
	if set("seed") {
		params.Seed = f.seed
	}
	if set("no-log") {
		params.Logging = !f.noLog
	}
	if set("quiet") {
		params.QuietLevel = f.quiet
	}
	if set("monochrome") {
		params.Monochrome = f.mono
	}
	if set("log-dir") {
		params.LogDir = f.logDir
	}
	if set("syscall") {
		params.Syscalls = f.syscalls
	}
	if set("group") {
		params.Group = f.group
	}
	if set("ops") {
		params.Ops = f.ops
	}
	if set("child-ops") {
		params.ChildOps = f.childOps
	}
	if set("live") {
		params.Live = f.live
	}
	if set("ktrace") {
		params.Ktrace = f.ktrace
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func newRootCommand() (*cobra.Command, *flags) {
	f := new(flags)

	cmd := &cobra.Command{
		Use:          "trinity",
		Short:        "system call fuzzer",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := f.params(cmd)
			if err != nil {
				return err
			}
			h, err := harness.New(&harness.Params{
				Config: params,
			})
			if err != nil {
				return err
			}
			defer h.Close()

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			return h.Run(ctx)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "f", "", "configuration file")
	fl.IntVarP(&f.children, "children", "C", 0, "number of worker processes")
	fl.Int64VarP(&f.seed, "seed", "s", 0, "random seed")
	fl.BoolVar(&f.noLog, "no-log", false, "don't write log files")
	fl.IntVarP(&f.quiet, "quiet", "q", 0, "console echo level")
	fl.BoolVarP(&f.mono, "monochrome", "m", false, "don't output colours")
	fl.StringVar(&f.logDir, "log-dir", ".", "log file directory")
	fl.StringSliceVarP(&f.syscalls, "syscall", "c", nil,
		"fuzz only the named syscalls")
	fl.StringVarP(&f.group, "group", "g", "", "fuzz only a syscall group")
	fl.Uint64VarP(&f.ops, "ops", "N", 0, "stop after this many operations")
	fl.Uint64Var(&f.childOps, "child-ops", config.DefaultChildOps,
		"operations per worker lifetime")
	fl.BoolVar(&f.live, "live", false, "invoke the real system calls")
	fl.BoolVar(&f.ktrace, "ktrace", false, "trace system calls")

	cmd.AddCommand(newChildCommand(), newListCommand())
	return cmd, f
}

func newChildCommand() *cobra.Command {
	var ca harness.ChildArgs
	var params string

	cmd := &cobra.Command{
		Use:          harness.ChildCommand,
		Short:        "run a worker",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			ca.Params, err = config.Parse(strings.NewReader(params))
			if err != nil {
				return err
			}
			err = harness.RunChild(context.Background(), &ca)
			if err != nil {
				log.L.Error("worker failed", "slot", ca.Slot, "error", err)
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&ca.Slot, "slot", -1, "worker slot")
	fl.Int64Var(&ca.Seed, "seed", 0, "worker seed")
	fl.StringVar(&params, "params", "", "worker parameters")
	return cmd
}

func newListCommand() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list the syscalls",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := syscalls.ParseGroup(group)
			if err != nil {
				return err
			}
			descs, err := syscalls.Default().Filter(args, g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, desc := range descs {
				var names []string
				for _, arg := range desc.Args {
					names = append(names, arg.Name)
				}
				fmt.Fprintf(w, "%-12s %4d %-5s (%s)\n", desc.Name, desc.Number,
					desc.Group, strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "syscall group")
	return cmd
}
