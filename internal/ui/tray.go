package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	wedgeapp "github.com/skobkin/wedgego/internal/app"
	"github.com/skobkin/wedgego/internal/resources"
)

// trayActions are the menu callbacks. Nil actions are left out of the menu.
type trayActions struct {
	ScanOnce      func()
	StartScanning func()
	StopScanning  func()
	Quit          func()
}

func configureSystemTray(fyApp fyne.App, window fyne.Window, initialVariant fyne.ThemeVariant, actions trayActions) func(fyne.ThemeVariant) {
	setTrayIcon := func(_ fyne.ThemeVariant) {}

	desk, ok := fyApp.(desktop.App)
	if !ok {
		return setTrayIcon
	}

	setTrayIcon = func(variant fyne.ThemeVariant) {
		desk.SetSystemTrayIcon(resources.TrayIconResource(variant))
	}
	setTrayIcon(initialVariant)
	desk.SetSystemTrayMenu(fyne.NewMenu(wedgeapp.Name, trayMenuItems(window, actions)...))

	return setTrayIcon
}

func trayMenuItems(window fyne.Window, actions trayActions) []*fyne.MenuItem {
	items := []*fyne.MenuItem{
		fyne.NewMenuItem("Show", func() {
			window.Show()
			window.RequestFocus()
		}),
	}

	var scanItems []*fyne.MenuItem
	for _, a := range []struct {
		label string
		fn    func()
	}{
		{label: scanOnceLabel, fn: actions.ScanOnce},
		{label: startScanningLabel, fn: actions.StartScanning},
		{label: stopScanningLabel, fn: actions.StopScanning},
	} {
		if a.fn == nil {
			continue
		}
		label, fn := a.label, a.fn
		scanItems = append(scanItems, fyne.NewMenuItem(label, func() {
			appLogger.Debug("tray scan action invoked", "action", label)
			fn()
		}))
	}
	if len(scanItems) > 0 {
		items = append(items, fyne.NewMenuItemSeparator())
		items = append(items, scanItems...)
	}

	items = append(items, fyne.NewMenuItemSeparator(), fyne.NewMenuItem("Quit", func() {
		appLogger.Debug("system tray quit action invoked")
		if actions.Quit != nil {
			actions.Quit()
		}
	}))

	return items
}
