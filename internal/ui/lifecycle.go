package ui

import (
	"context"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
)

const sessionToggleTimeout = 10 * time.Second

// bindLifecycle activates the scan session while the window is in the
// foreground and starts notifications that respect the foreground state.
func bindLifecycle(dep RuntimeDependencies, fyApp fyne.App, startHidden bool) func() {
	ctx, stop := context.WithCancel(context.Background())

	var appForeground atomic.Bool
	appForeground.Store(!startHidden)

	toggle := func(name string, fn func(context.Context) error) {
		if fn == nil {
			return
		}
		dep.UIHooks.runAsync(func() {
			opCtx, cancel := context.WithTimeout(ctx, sessionToggleTimeout)
			defer cancel()
			if err := fn(opCtx); err != nil {
				appLogger.Warn("scan session lifecycle change failed", "action", name, "error", err)
			}
		})
	}

	fyApp.Lifecycle().SetOnEnteredForeground(func() {
		appForeground.Store(true)
		toggle("activate", dep.Actions.OnActivate)
	})
	fyApp.Lifecycle().SetOnExitedForeground(func() {
		appForeground.Store(false)
		toggle("deactivate", dep.Actions.OnDeactivate)
	})

	if dep.Actions.StartNotifications != nil {
		dep.Actions.StartNotifications(newNotificationSender(fyApp, dep.UIHooks), appForeground.Load)
	}

	return stop
}
