package ui

import (
	"fmt"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	wedgeapp "github.com/skobkin/wedgego/internal/app"
	"github.com/skobkin/wedgego/internal/connectors"
)

type connectionStatusPresenter struct {
	window      fyne.Window
	statusLabel *widget.Label

	mu      sync.RWMutex
	current connectors.ConnectionStatus
}

func newConnectionStatusPresenter(window fyne.Window, statusLabel *widget.Label, initialStatus connectors.ConnectionStatus) *connectionStatusPresenter {
	presenter := &connectionStatusPresenter{
		window:      window,
		statusLabel: statusLabel,
		current:     initialStatus,
	}
	presenter.applyUI(initialStatus)

	return presenter
}

func (p *connectionStatusPresenter) Set(status connectors.ConnectionStatus) {
	p.mu.Lock()
	p.current = status
	p.mu.Unlock()
	p.applyUI(status)
}

func (p *connectionStatusPresenter) CurrentStatus() connectors.ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current
}

func (p *connectionStatusPresenter) applyUI(status connectors.ConnectionStatus) {
	if p.statusLabel != nil {
		p.statusLabel.SetText(formatConnStatus(status))
	}
	if p.window != nil {
		p.window.SetTitle(formatWindowTitle(status))
	}
}

func resolveInitialConnStatus(dep RuntimeDependencies) connectors.ConnectionStatus {
	if dep.Data.CurrentConnStatus != nil {
		if status, ok := dep.Data.CurrentConnStatus(); ok {
			return status
		}
	}

	return connectors.ConnectionStatus{State: connectors.ConnectionStateConnecting}
}

func formatConnStatus(status connectors.ConnectionStatus) string {
	text := fmt.Sprintf("Relay: %s", status.State)
	if status.TransportName != "" {
		text += " via " + status.TransportName
	}
	if status.Target != "" {
		text += " (" + status.Target + ")"
	}
	if status.Err != "" {
		text += ": " + status.Err
	}

	return text
}

func formatWindowTitle(status connectors.ConnectionStatus) string {
	title := wedgeapp.Name + " - " + string(status.State)
	if status.TransportName != "" {
		title += " via " + status.TransportName
	}

	return title
}

// bindConnStatus keeps the presenter in sync with conn.status bus events.
func bindConnStatus(dep RuntimeDependencies, presenter *connectionStatusPresenter) func() {
	if dep.Data.Bus == nil {
		return func() {}
	}

	sub := dep.Data.Bus.Subscribe(connectors.TopicConnStatus)
	go func() {
		for raw := range sub {
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			dep.UIHooks.runOnUI(func() {
				presenter.Set(status)
			})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			dep.Data.Bus.Unsubscribe(sub, connectors.TopicConnStatus)
		})
	}
}
