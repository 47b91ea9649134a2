package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lc/confwatch/internal/socket"
	"github.com/lc/confwatch/pkg/api"
	"github.com/lc/confwatch/pkg/client"
)

const queryTimeout = 3 * time.Second

// client resolves the socket path from the flag or the settings file.
func (a *app) client(socketPath string) (*client.Client, error) {
	if socketPath == "" {
		cfg, err := a.settings.Load()
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		socketPath = cfg.Socket.Path
	}
	return client.New(socketPath), nil
}

func (a *app) notRunning(err error) bool {
	if errors.Is(err, socket.ErrNotRunning) {
		color.New(color.FgYellow).Fprintln(a.errOut, "No watcher is serving the status API. Start one with `confwatch watch --socket <path>`.")
		return true
	}
	return false
}

func (a *app) statusCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the status of a running watcher",
		Example: "confwatch status --socket /tmp/confwatch.socket",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := a.client(socketPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()

			st, err := cl.Status(ctx)
			if err != nil {
				a.notRunning(err)
				return err
			}
			renderTable(a.out, []string{"Field", "Value"}, statusRows(st, time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "status API socket (default from settings)")
	return cmd
}

func statusRows(st api.StatusResponse, now time.Time) [][]string {
	lastMod := "never"
	if st.LastModified != nil {
		lastMod = humanize.RelTime(*st.LastModified, now, "ago", "from now")
	}
	lastErr := "none"
	if st.LastError != "" {
		lastErr = st.LastError
	}
	return [][]string{
		{"Path", st.Path},
		{"State", st.State},
		{"Interval", st.Interval.String()},
		{"Last modified", lastMod},
		{"Digest", orDash(st.Digest)},
		{"Checks", humanize.Comma(st.Checks)},
		{"Loads", humanize.Comma(st.Loads)},
		{"Failures", humanize.Comma(st.Failures)},
		{"Last error", lastErr},
		{"Started", humanize.RelTime(st.StartedAt, now, "ago", "from now")},
		{"Run ID", st.RunID},
		{"Version", st.Version + " (" + st.Commit + ")"},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) showCmd() *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:     "show",
		Short:   "Print the configuration held by a running watcher",
		Example: "confwatch show",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := a.client(socketPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
			defer cancel()

			cfg, err := cl.Config(ctx)
			switch {
			case errors.Is(err, client.ErrNoConfig):
				color.New(color.FgYellow).Fprintln(a.errOut, "The watcher has not loaded a valid configuration yet.")
				return err
			case err != nil:
				a.notRunning(err)
				return err
			}
			color.New(color.Bold).Fprintln(a.out, "CURRENT CONFIGURATION:")
			renderTable(a.out, []string{"Field", "Value"}, configRows(cfg))
			return nil
		},
	}
	cmd.Flags().StringVar(&socketPath, "socket", "", "status API socket (default from settings)")
	return cmd
}
