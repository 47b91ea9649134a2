package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lc/confwatch/internal/config"
	"github.com/lc/confwatch/internal/log"
	"github.com/lc/confwatch/internal/report"
	"github.com/lc/confwatch/internal/socket"
	"github.com/lc/confwatch/internal/watcher"
	"github.com/lc/confwatch/pkg/api"
)

const shutdownTimeout = 5 * time.Second

type watchOptions struct {
	file     string
	interval uint
	output   string
	socket   string
}

func (a *app) watchCmd() *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a configuration file until interrupted",
		Long: `Load the file, then check its modification time every interval and reload it
when it changes. Invalid or unreadable files are reported and the last valid
configuration is kept.`,
		Example: "confwatch watch -f config.json -i 5",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.watchSettings(cmd, opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, opts.file, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "path to the configuration file to watch")
	f.UintVarP(&opts.interval, "interval", "i", uint(config.DefaultInterval/time.Second), "check interval in seconds (1-3600)")
	f.StringVar(&opts.output, "output", "", `event output, "console" or "json" (default from settings)`)
	f.StringVar(&opts.socket, "socket", "", "serve the status API on this Unix socket")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// watchSettings merges the settings file with the flags that were set.
func (a *app) watchSettings(cmd *cobra.Command, opts watchOptions) (*config.Config, error) {
	cfg, err := a.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("interval") {
		cfg.Watch.Interval = time.Duration(opts.interval) * time.Second
	}
	if f.Changed("output") {
		cfg.Watch.Output = config.Output(opts.output)
	}
	if f.Changed("socket") {
		cfg.Socket.Enabled = true
		cfg.Socket.Path = opts.socket
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command-line arguments: %w", err)
	}
	return cfg, nil
}

// runWatch runs the watch loop, and the status API when enabled, until ctx
// is cancelled or the loop fails.
func (a *app) runWatch(ctx context.Context, file string, cfg *config.Config) error {
	var (
		obs     watcher.Observer
		console *report.Console
	)
	switch cfg.Watch.Output {
	case config.OutputJSON:
		obs = report.NewLog(log.NewSplit(a.out, a.errOut))
	default:
		console = report.NewConsole(a.out, a.errOut)
		obs = console
		if !a.verbose {
			log.SetLevel(zap.WarnLevel)
		}
	}

	w := watcher.New(file, cfg.Watch.Interval, watcher.WithObserver(obs))

	var (
		sock *socket.Socket
		srv  *api.Server
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Socket.Enabled {
		sock = socket.New(cfg.Socket.Path, nil, nil)
		ln, err := sock.Listen()
		if err != nil {
			return fmt.Errorf("binding status socket: %w", err)
		}
		srv = api.New(w)
		g.Go(func() error { return srv.Serve(ln) })
		log.Info("status api listening", "socket", sock.Path())
	}

	if console != nil {
		console.Start(file, cfg.Watch.Interval)
	}

	g.Go(func() error {
		err := w.Watch(gctx)
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = multierr.Combine(err, srv.Shutdown(shutdownCtx), sock.Remove())
		}
		return err
	})

	err := g.Wait()
	if console != nil && ctx.Err() != nil {
		console.Stop()
	}
	if err != nil {
		return fmt.Errorf("watcher error: %w", err)
	}
	return nil
}
