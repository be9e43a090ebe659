package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/notifications"
)

const (
	notificationTitleScanned         = "Barcode scanned"
	notificationTitleScannerDisabled = "Scanner disabled"
	notificationTitleUnsupported     = "Unsupported DataWedge version"
)

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	isForeground  func() bool
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	isForeground func() bool,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		isForeground:  isForeground,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	scanSub := s.bus.Subscribe(connectors.TopicScan)
	statusSub := s.bus.Subscribe(connectors.TopicScannerStatus)
	versionSub := s.bus.Subscribe(connectors.TopicVersion)
	connSub := s.bus.Subscribe(connectors.TopicConnStatus)

	go func() {
		defer s.bus.Unsubscribe(scanSub, connectors.TopicScan)
		defer s.bus.Unsubscribe(statusSub, connectors.TopicScannerStatus)
		defer s.bus.Unsubscribe(versionSub, connectors.TopicVersion)
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-scanSub:
				if !ok {
					return
				}
				if rec, ok := raw.(connectors.ScanRecord); ok {
					s.handleScan(rec)
				}
			case raw, ok := <-statusSub:
				if !ok {
					return
				}
				if status, ok := raw.(connectors.ScannerStatus); ok {
					s.handleScannerStatus(status)
				}
			case raw, ok := <-versionSub:
				if !ok {
					return
				}
				if info, ok := raw.(connectors.VersionInfo); ok {
					s.handleVersion(info)
				}
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				if status, ok := raw.(connectors.ConnectionStatus); ok {
					s.handleConnectionStatus(status)
				}
			}
		}
	}()
}

func (s *NotificationService) handleScan(rec connectors.ScanRecord) {
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.Scanned) {
		return
	}

	barcode := strings.TrimSpace(rec.Barcode)
	if barcode == "" {
		barcode = "(empty)"
	}
	content := barcode
	if symbology := strings.TrimSpace(rec.Symbology); symbology != "" {
		content = fmt.Sprintf("%s [%s]", barcode, symbology)
	}

	s.send(notifications.Payload{Title: notificationTitleScanned, Content: content})
}

func (s *NotificationService) handleScannerStatus(status connectors.ScannerStatus) {
	if status.Status != datawedge.StatusDisabled {
		return
	}
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.ScannerStatus) {
		return
	}

	content := "The scanner was disabled"
	if profile := strings.TrimSpace(status.ProfileName); profile != "" {
		content = fmt.Sprintf("Profile %s disabled the scanner", profile)
	}
	s.send(notifications.Payload{Title: notificationTitleScannerDisabled, Content: content})
}

func (s *NotificationService) handleVersion(info connectors.VersionInfo) {
	if info.Supported {
		return
	}
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.ScannerStatus) {
		return
	}

	s.send(notifications.Payload{
		Title:   notificationTitleUnsupported,
		Content: fmt.Sprintf("DataWedge %s is older than %s, profile configuration may fail", info.DataWedge, info.MinRequired),
	})
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	prefs := s.notificationPrefs()
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	if status.State != connectors.ConnectionStateConnected &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}
	if !s.shouldNotify(prefs, prefs.ConnectionStatus) {
		return
	}

	transport := notificationTransportName(status.TransportName)
	if transport == "" {
		transport = "Unknown"
	}
	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No connection details"
	}
	if status.State == connectors.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("%s relay - %s", transport, status.State),
		Content: details,
	})
}

func (s *NotificationService) shouldNotify(prefs config.NotificationConfig, kindEnabled bool) bool {
	if !kindEnabled {
		return false
	}
	if prefs.NotifyWhenFocused {
		return true
	}
	if s.isForeground == nil {
		return true
	}

	return !s.isForeground()
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	notification, ok := notification.Normalize()
	if !ok {
		return
	}
	s.logger.Debug("sending notification", "title", notification.Title)
	s.sender.Send(notification)
}

func notificationTransportName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ip":
		return "IP"
	case "serial":
		return "Serial"
	case "bluetooth":
		return "Bluetooth LE"
	default:
		return strings.TrimSpace(name)
	}
}
