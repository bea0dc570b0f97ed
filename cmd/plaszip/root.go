package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/plaszip/plaszip"
)

const rootUsage = `plaszip converts point-cloud files between LAS and LAZ across a cohort
of cooperating peers, each responsible for a disjoint range of the source
file's points.

A single-peer run (the default) behaves like an ordinary local converter.
Launching the same command with --peers N on N hosts, one per --rank, turns
it into a real distributed job coordinated over TCP.`

func newRootCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "plaszip",
		Short:         "Parallel LAS/LAZ converter",
		Long:          rootUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				plaszip.Log.SetOutput(os.Stderr)
				plaszip.Log.SetLevel(logrus.DebugLevel)
			}
			return loadConfigIfPresent()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newConvertCommand())
	return cmd
}

// Execute runs the root command and reports any error to stderr, matching
// the teacher's own cmd/desync entrypoint shape.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
