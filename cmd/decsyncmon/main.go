// Package main is the entry point for decsyncmon.
//
// decsyncmon watches a DecSync directory and executes new entries as they
// arrive from the external file-sync tool, logging every delivered update.
// It is meant for embedders that want a long-running delivery loop outside
// their application process, and for diagnosing synchronization issues.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/localfirst/decsync"
	"github.com/localfirst/decsync/watch"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "decsyncmon: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	dir := flag.String("decsync-dir", "", "DecSync directory (defaults to $DECSYNC_DIR or ~/.local/share/decsync)")
	syncType := flag.String("sync-type", "", "Type of data to sync (e.g. rss, contacts, calendars)")
	collection := flag.String("collection", "", "Collection identifier, for sync types with multiple instances")
	appName := flag.String("app-name", "decsyncmon", "Application name used to derive the app id")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}
	if *syncType == "" {
		return errors.New("-sync-type is required")
	}

	ll := &slog.LevelVar{}
	switch *logLevel {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level %q", *logLevel)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	appID, err := decsync.GetAppID(*appName)
	if err != nil {
		return err
	}
	ds, err := decsync.New[struct{}](*dir, *syncType, *collection, appID)
	if err != nil {
		return err
	}
	ds.AddListener(nil, func(path []string, entry decsync.Entry, _ struct{}) error {
		slog.Info("Entry updated",
			"path", path,
			"datetime", entry.Datetime,
			"key", entry.Key.String(),
			"value", entry.Value.String())
		return nil
	})

	monitor, err := watch.New(ds, struct{}{})
	if err != nil {
		return err
	}
	slog.Info("Watching for updates",
		"dir", ds.Dir(), "syncType", *syncType, "collection", *collection, "appId", appID)
	return monitor.Run(ctx)
}
