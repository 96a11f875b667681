package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exxeleron/yak/internal/manager"
)

const hline = "--------------------------------------------------------------------------------"

func (a *app) statusCallback() manager.Callback {
	return func(o manager.Outcome) {
		switch {
		case o.Err != nil:
			fmt.Printf("\t%-30s\tFailed\n", o.UID)
		case o.Changed:
			fmt.Printf("\t%-30s\tOK\n", o.UID)
		default:
			fmt.Printf("\t%-30s\tSkipped\n", o.UID)
		}
	}
}

func pauseCallback(d time.Duration) {
	if d >= time.Second {
		fmt.Printf("  Waiting for: %gs\n", d.Seconds())
	}
}

// summarize reports failed outcomes with the captured stderr of the
// component and decides the exit code of the batch.
func (a *app) summarize(verb string, results []manager.Outcome) error {
	failed := false
	for _, o := range results {
		if o.Err == nil {
			continue
		}
		failed = true
		fmt.Println(hline)
		fmt.Printf("Failed to %s: %s\n%v\n", verb, o.UID, o.Err)
		if proc := a.mgr.Process(o.UID); proc != nil && proc.Record().Stderr != "" {
			fmt.Println("\nCaptured stderr:")
			showFileInternal(proc.Record().Stderr)
		}
		a.log.Error("operation failed",
			zap.String("operation", verb), zap.String("uid", o.UID), zap.Error(o.Err))
	}
	if failed {
		fmt.Println(hline)
		return errFailed
	}
	return nil
}

func reversed(uids []string) []string {
	out := make([]string, len(uids))
	for i, uid := range uids {
		out[len(uids)-1-i] = uid
	}
	return out
}

func (a *app) resolve(cmd string, args []string) ([]string, error) {
	a.log.Info("command", zap.String("command", cmd), zap.Strings("selectors", args))
	return a.mgr.Resolve(args)
}

func (a *app) startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <component|group ...>",
		Short: "start component or components group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("start", args)
			if err != nil {
				return err
			}
			fmt.Println("Starting components...")
			return a.summarize("start", a.mgr.Start(uids, a.statusCallback(), pauseCallback, a.opts.arguments))
		},
	}
	cmd.Flags().StringVarP(&a.opts.arguments, "arguments", "a", "", "additional arguments passed to the process")
	return cmd
}

func (a *app) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <component|group ...>",
		Short: "stop component or components group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("stop", args)
			if err != nil {
				return err
			}
			fmt.Println("Stopping components...")
			return a.summarize("stop", a.mgr.Stop(reversed(uids), a.statusCallback(), pauseCallback, false))
		},
	}
}

func (a *app) killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <component|group ...>",
		Short: "force stop component or components group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("kill", args)
			if err != nil {
				return err
			}
			fmt.Println("Killing components...")
			return a.summarize("kill", a.mgr.Stop(reversed(uids), a.statusCallback(), pauseCallback, true))
		},
	}
}

func (a *app) restartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <component|group ...>",
		Short: "restart component or components group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("restart", args)
			if err != nil {
				return err
			}
			fmt.Println("Stopping components...")
			if err := a.summarize("stop", a.mgr.Stop(reversed(uids), a.statusCallback(), pauseCallback, false)); err != nil {
				return err
			}
			if err := a.mgr.Reload(); err != nil {
				return err
			}
			fmt.Println("Starting components...")
			return a.summarize("start", a.mgr.Start(uids, a.statusCallback(), pauseCallback, a.opts.arguments))
		},
	}
	cmd.Flags().StringVarP(&a.opts.arguments, "arguments", "a", "", "additional arguments passed to the process")
	return cmd
}

func (a *app) interruptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interrupt <component|group ...>",
		Short: "send INT signal to component or components group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("interrupt", args)
			if err != nil {
				return err
			}
			fmt.Println("Interrupting components...")
			return a.summarize("interrupt", a.mgr.Interrupt(reversed(uids), a.statusCallback()))
		},
	}
}

func (a *app) consoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console <component>",
		Short: "start single component in interactive mode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("console", args)
			if err != nil {
				return err
			}
			if len(uids) != 1 {
				return fmt.Errorf("console can only be performed on a single component")
			}
			fmt.Println("Starting interactive console...")
			started, err := a.mgr.Console(uids[0], a.opts.arguments)
			if err != nil {
				fmt.Println(err)
				return errFailed
			}
			if !started {
				fmt.Printf("\t%-30s\tSkipped\n", uids[0])
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.opts.arguments, "arguments", "a", "", "additional arguments passed to the process")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [component|group ...]",
		Short: "display status of component or components group",
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"*"}
			}
			uids, err := a.resolve("info", args)
			if err != nil {
				return err
			}
			sort.Strings(uids)

			var filter map[string]struct{}
			if a.opts.filter != "" {
				filter = map[string]struct{}{}
				for _, st := range strings.Split(strings.ToUpper(a.opts.filter), "#") {
					filter[st] = struct{}{}
				}
			}

			table, err := parseInfoFormat(a.opts.format, a.opts.delimiter)
			if err != nil {
				return err
			}
			fmt.Println(table.header())
			for _, uid := range uids {
				proc := a.mgr.Process(uid)
				if filter != nil {
					if _, ok := filter[string(proc.Status())]; !ok {
						continue
					}
				}
				fmt.Println(table.row(func(attr string) string { return a.attrValue(uid, attr) }))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.opts.filter, "filter", "F", "", "status filter, e.g. RUNNING#STOPPED")
	return cmd
}

func (a *app) detailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <component|group ...>",
		Short: "display detailed information on component or components group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve("details", args)
			if err != nil {
				return err
			}
			sort.Strings(uids)

			fmt.Println(hline)
			for _, uid := range uids {
				a.printDetails(uid)
				fmt.Println(hline)
			}
			return nil
		},
	}
}

func (a *app) fileCmd(name, short string, path func(uid string) string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <component|group ...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			uids, err := a.resolve(name, args)
			if err != nil {
				return err
			}
			sort.Strings(uids)

			for _, uid := range uids {
				a.showComponentFile(uid, path(uid))
			}
			return nil
		},
	}
}
