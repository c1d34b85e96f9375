package main

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/watcher"
	"github.com/ZanzyTHEbar/treesum/treesum/fingerprint"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		debounce time.Duration
		maxDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <root>",
		Short: "Print the fingerprint again whenever the tree changes",
		Long: `Watch fingerprints the tree once, then re-runs after filesystem changes
settle and prints a line each time the fingerprint differs from the last one.
Ignored directories are not watched. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			w := watcher.New(engine, watcher.Config{
				DebounceDelay:    debounce,
				MaxDebounceDelay: maxDelay,
				Logger:           a.logger,
			})
			return w.Run(cmd.Context(), args[0], func(res *fingerprint.Result) {
				fmt.Fprintln(a.stdout, res.Fingerprint)
				if a.stats {
					printStats(a.stderr, res)
				}
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounceDelay, "quiet period before re-running")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", watcher.DefaultMaxDebounceDelay, "longest wait under a steady stream of changes (0 disables)")
	return cmd
}
