package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/spyglass/pkg/config"
	"github.com/odvcencio/spyglass/pkg/engine"
	"github.com/odvcencio/spyglass/pkg/host/headless"
	"github.com/odvcencio/spyglass/pkg/journal"
	"github.com/odvcencio/spyglass/pkg/server"
	"github.com/odvcencio/spyglass/pkg/tracing"
	"github.com/odvcencio/spyglass/pkg/watch"
)

// runServeCommand starts the loopback HTTP/WebSocket server and blocks
// until interrupted.
func runServeCommand(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runServe(ctx, args)
}

// runServe wires the engine, the optional watcher and journal, and the
// server under one cancellable context.
func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config file (default: search order)")
	bind := fs.String("bind", "", "address to bind (default: server.listen from config)")
	file := fs.String("file", "", "active file for the headless provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Server.Enabled = true
	if addr := strings.TrimSpace(*bind); addr != "" {
		cfg.Server.Listen = addr
	}
	// Re-validate: enabling the server turns on its config invariants.
	if err := cfg.Validate(); err != nil {
		return err
	}

	sessionID := ulid.Make().String()
	log := openLogger(cfg, sessionID)
	if log != nil {
		defer log.Close()
	}

	var tp *tracing.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.NewTracerProvider("spyglass", version, os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: tracing disabled: %v\n", err)
			tp = nil
		}
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	root := config.ResolveProjectRoot(cfg)
	provider := headless.New(root, headless.Options{File: *file}, log)
	eng := engine.New(cfg, provider,
		engine.WithLogger(log),
		engine.WithSessionID(sessionID),
	)

	opts := []server.Option{server.WithLogger(log)}
	if cfg.Journal.Enabled {
		j, err := journal.Open(resolveJournalPath(cfg))
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, server.WithJournal(j))
	}

	// Every exit path releases the watcher goroutine.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Watch.Enabled {
		w, err := watch.New(root, eng, log, watch.Options{
			Debounce: cfg.WatchDebounce(),
			Ignore:   cfg.Watch.Ignore,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: file watching disabled: %v\n", err)
		} else {
			// Start blocks until shutdown, so it runs beside the server;
			// the listener must still come up.
			go func() {
				if err := w.Start(ctx); err != nil && ctx.Err() == nil {
					fmt.Fprintf(os.Stderr, "warning: file watching stopped: %v\n", err)
				}
			}()
		}
	}

	fmt.Fprintf(os.Stderr, "spyglass: listening on %s (session %s)\n", cfg.Server.Listen, sessionID)
	return server.New(cfg, eng, opts...).Start(ctx)
}
