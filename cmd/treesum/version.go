package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// version needs no config
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "treesum version: %s\n", Version)
			fmt.Fprintf(a.stdout, "Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "Build date: %s\n", BuildDate)
			fmt.Fprintf(a.stdout, "Go version: %s\n", runtime.Version())
		},
	}
}
