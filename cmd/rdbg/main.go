// Command rdbg is a thin CLI front end over pkg/proc: attach/run an
// inferior, single-step or continue it, and dump its process list or a
// core file. It exists to exercise the Debugger facade end to end, the
// way delve's cmd/dlv sits over pkg/proc.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ilian/rdbg/pkg/proc"
	"github.com/ilian/rdbg/pkg/proc/native"
)

func newDebugger() *proc.Debugger {
	backend := native.NewLinuxBackend()
	d := proc.NewDebugger(backend, proc.StaticConfig{Autoload: true}, nil)
	d.SetDisassembler(native.DefaultDisassembler())
	return d
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	root := &cobra.Command{
		Use:   "rdbg",
		Short: "native debugger backend CLI",
	}
	root.AddCommand(psCmd(), attachCmd(), runCmd(), coreCmd())

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func psCmd() *cobra.Command {
	var ppid int
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "list OS processes, optionally filtered by parent pid",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDebugger()
			procs, err := d.ProcessList(ppid, cmd.Flags().Changed("ppid"))
			if err != nil {
				return err
			}
			for _, p := range procs {
				fmt.Printf("%-8d %-8d %-8s %s\n", p.Pid, p.Ppid, p.Status, p.Exe)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ppid, "ppid", 0, "filter by parent pid")
	return cmd
}

func attachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <pid>",
		Short: "attach to a running process and stream stop reasons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pid int
			if _, err := fmt.Sscanf(args[0], "%d", &pid); err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			d := newDebugger()
			if _, err := d.Attach(pid); err != nil {
				return err
			}
			logrus.WithField("pid", pid).Info("attached")
			return streamEvents(d)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <path> [args...]",
		Short: "launch and trace a new inferior",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := native.Launch(args[0], args[1:])
			if err != nil {
				return err
			}
			d := newDebugger()
			if _, err := d.Attach(pid); err != nil {
				return err
			}
			logrus.WithField("pid", pid).Info("launched")
			return streamEvents(d)
		},
	}
}

func coreCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "gcore <pid>",
		Short: "write a core dump of a traced process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pid int
			if _, err := fmt.Sscanf(args[0], "%d", &pid); err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			d := newDebugger()
			if _, err := d.Attach(pid); err != nil {
				return err
			}
			defer func() {
				if err := d.Detach(pid); err != nil {
					logrus.WithError(err).Warn("detach failed")
				}
			}()
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return d.GCore(f)
		},
	}
	cmd.Flags().StringVar(&out, "out", "core.rdbg", "output path")
	return cmd
}

// streamEvents drives Continue/Wait until the inferior dies, logging
// every stop reason, matching the §8 test-scenario shape of a visible
// NewTid/NewTid/ExitTid/ExitTid/Dead stream by default.
func streamEvents(d *proc.Debugger) error {
	ctx := context.Background()
	for {
		reason, err := d.Wait(ctx)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"reason": reason.Type.String(),
			"tid":    reason.Tid,
		}).Info("stop")
		if reason.Type == proc.ReasonDead {
			return nil
		}
		if err := d.Continue(-1); err != nil {
			return err
		}
	}
}
