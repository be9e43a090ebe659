package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/skobkin/wedgego/internal/app"
	"github.com/skobkin/wedgego/internal/ui"
)

type launchOptions struct {
	StartHidden bool
	Simulate    bool
	NoAPI       bool
	Version     bool
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	var opts launchOptions
	fs := flag.NewFlagSet("wedgego", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.StartHidden, "start-hidden", false, "start with the main window hidden in the tray")
	fs.BoolVar(&opts.Simulate, "simulate", false, "use the built-in device simulator instead of a relay")
	fs.BoolVar(&opts.NoAPI, "no-api", false, "do not start the local HTTP API even if it is enabled in config")
	fs.BoolVar(&opts.Version, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return opts, nil
}

func versionLine(info app.BuildInfo) string {
	line := info.Name + " " + info.Version
	if info.Date != "" {
		line += " (" + info.Date + ")"
	}

	return line
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		slog.Error("parse launch options", "error", err)
		os.Exit(2)
	}

	if opts.Version {
		fmt.Println(versionLine(app.CurrentBuildInfo()))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{Simulate: opts.Simulate})
	if err != nil {
		slog.Error("initialize app runtime", "error", err)
		os.Exit(1)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	if !opts.NoAPI {
		if err := rt.StartAPI(); err != nil {
			slog.Warn("http api is unavailable", "error", err)
		}
	}

	err = ui.Run(ui.RuntimeDependencies{
		Data: ui.DataDependencies{
			Bus:               rt.Bus,
			CurrentConnStatus: rt.CurrentConnStatus,
		},
		Actions: ui.ActionDependencies{
			Scanner:            rt.Session,
			OnActivate:         rt.Activate,
			OnDeactivate:       rt.Deactivate,
			StartNotifications: rt.StartNotifications,
			OnQuit: func() {
				stop()
				closeRuntime()
			},
		},
		Launch: ui.LaunchOptions{StartHidden: opts.StartHidden},
	})
	if err != nil {
		slog.Error("run ui", "error", err)
		os.Exit(1)
	}
}
