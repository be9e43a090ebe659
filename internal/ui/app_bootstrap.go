package ui

import (
	"context"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/widget"

	"github.com/skobkin/wedgego/internal/resources"
)

var newFyneApp = func() fyne.App {
	return fyneapp.NewWithID("io.github.skobkin.wedgego")
}

func runWithApp(dep RuntimeDependencies, fyApp fyne.App) error {
	initialVariant := fyApp.Settings().ThemeVariant()
	fyApp.SetIcon(resources.AppIconResource(initialVariant))
	appLogger.Info(
		"starting UI runtime",
		"start_hidden", dep.Launch.StartHidden,
		"initial_theme", initialVariant,
	)

	window := fyApp.NewWindow("")
	window.Resize(fyne.NewSize(480, 420))

	statusLabel := widget.NewLabel("")
	presenter := newConnectionStatusPresenter(window, statusLabel, resolveInitialConnStatus(dep))

	viewCtx, stopView := context.WithCancel(context.Background())
	view := newScanView(viewCtx, dep.Actions.Scanner, dep.UIHooks, statusLabel)
	window.SetContent(view.Content())

	themeRuntime := newThemeRuntime(fyApp)
	themeRuntime.BindSettings()

	stopLifecycle := bindLifecycle(dep, fyApp, dep.Launch.StartHidden)
	stopScanEvents := view.listen()
	stopConnStatus := bindConnStatus(dep, presenter)

	var stopOnce sync.Once
	stopListeners := func() {
		stopOnce.Do(func() {
			stopConnStatus()
			stopScanEvents()
			stopView()
		})
	}

	uiRuntime := newUIRuntime(fyApp, window, stopLifecycle, stopListeners, dep.Actions.OnQuit)
	uiRuntime.BindCloseIntercept()

	setTrayIcon := configureSystemTray(fyApp, window, initialVariant, trayActions{
		ScanOnce:      view.scanOnce,
		StartScanning: view.startScanning,
		StopScanning:  view.stopScanning,
		Quit:          uiRuntime.Quit,
	})
	themeRuntime.SetTrayIconSetter(setTrayIcon)
	themeRuntime.Apply(initialVariant)

	uiRuntime.Run(dep.Launch.StartHidden)

	return nil
}
