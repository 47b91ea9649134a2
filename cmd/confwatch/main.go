// Command confwatch watches a configuration file and keeps a validated copy of
// it in memory, reporting every reload, failure and recovery.
//
// Usage:
//
//	confwatch watch -f <file> [-i <seconds>]   - Watch a file until interrupted
//	confwatch validate -f <file>               - Load and validate a file once
//	confwatch init -f <file> [--force]         - Write a starter configuration
//	confwatch status                           - Query a running watcher
//	confwatch show                             - Print a running watcher's configuration
//	confwatch settings [--save]                - Print or save confwatch's own settings
//
// A failed reload never discards the last valid configuration; the watcher
// keeps polling until the file becomes valid again.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lc/confwatch/internal/buildinfo"
	"github.com/lc/confwatch/internal/config"
	"github.com/lc/confwatch/internal/log"
)

// app carries what every subcommand shares.
type app struct {
	out      io.Writer
	errOut   io.Writer
	settings config.Provider
	verbose  bool
}

func main() {
	defer log.Sync()

	a := &app{out: os.Stdout, errOut: os.Stderr, settings: config.New()}
	if err := a.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "confwatch",
		Short: "Watch and validate configuration files",
		Long: `confwatch polls a JSON or YAML configuration file, validates every change
and keeps the last valid version when a reload fails.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if a.verbose {
				log.SetLevel(zap.DebugLevel)
			}
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.watchCmd(),
		a.validateCmd(),
		a.initCmd(),
		a.statusCmd(),
		a.showCmd(),
		a.settingsCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "version: %s\n", buildinfo.Version)
			fmt.Fprintf(a.out, "commit: %s\n", buildinfo.Commit)
		},
	}
}
