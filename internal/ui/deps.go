package ui

import (
	"context"

	"fyne.io/fyne/v2"

	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/notifications"
)

type DataDependencies struct {
	Bus               bus.MessageBus
	CurrentConnStatus func() (connectors.ConnectionStatus, bool)
}

type ActionDependencies struct {
	Scanner ScanController
	// OnActivate and OnDeactivate follow the window's foreground state.
	OnActivate         func(ctx context.Context) error
	OnDeactivate       func(ctx context.Context) error
	StartNotifications func(sender notifications.Sender, isForeground func() bool)
	OnQuit             func()
}

type UIHooks struct {
	RunOnUI  func(func())
	RunAsync func(func())
}

type LaunchOptions struct {
	StartHidden bool
}

type RuntimeDependencies struct {
	Data    DataDependencies
	Actions ActionDependencies
	UIHooks UIHooks
	Launch  LaunchOptions
}

func (h UIHooks) runOnUI(fn func()) {
	if h.RunOnUI != nil {
		h.RunOnUI(fn)
		return
	}
	fyne.Do(fn)
}

func (h UIHooks) runAsync(fn func()) {
	if h.RunAsync != nil {
		h.RunAsync(fn)
		return
	}
	go fn()
}
