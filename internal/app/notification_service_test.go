package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/notifications"
)

func startTestNotificationService(t *testing.T, cfg func() config.AppConfig, foreground func() bool) (*bus.PubSubBus, *collectingNotificationSender) {
	t.Helper()

	messageBus := newTestMessageBus(t)
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, cfg, foreground, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	service.Start(ctx)

	return messageBus, sender
}

func TestNotificationServiceScanFormatting(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startTestNotificationService(t, func() config.AppConfig { return cfg }, func() bool { return false })

	messageBus.Publish(connectors.TopicScan, connectors.ScanRecord{
		Barcode:   "4006381333931",
		Symbology: "EAN13",
		Mode:      connectors.ScanModeSingle,
		At:        time.Now(),
	})
	messageBus.Publish(connectors.TopicScan, connectors.ScanRecord{Barcode: "ABC", Mode: connectors.ScanModeContinuous})

	got := sender.waitForCount(t, 2)
	if got[0].Title != "Barcode scanned" || got[0].Content != "4006381333931 [EAN13]" {
		t.Fatalf("unexpected notification %+v", got[0])
	}
	if got[1].Content != "ABC" {
		t.Fatalf("expected plain barcode content, got %q", got[1].Content)
	}
}

func TestNotificationServiceScannerDisabledOnly(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startTestNotificationService(t, func() config.AppConfig { return cfg }, nil)

	messageBus.Publish(connectors.TopicScannerStatus, connectors.ScannerStatus{Status: datawedge.StatusScanning})
	sender.assertCount(t, 0)

	messageBus.Publish(connectors.TopicScannerStatus, connectors.ScannerStatus{
		Status:      datawedge.StatusDisabled,
		ProfileName: "Warehouse",
	})
	got := sender.waitForCount(t, 1)
	if got[0].Title != "Scanner disabled" || got[0].Content != "Profile Warehouse disabled the scanner" {
		t.Fatalf("unexpected notification %+v", got[0])
	}
}

func TestNotificationServiceUnsupportedVersion(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startTestNotificationService(t, func() config.AppConfig { return cfg }, nil)

	messageBus.Publish(connectors.TopicVersion, connectors.VersionInfo{DataWedge: "8.2", Supported: true, MinRequired: "6.4"})
	sender.assertCount(t, 0)

	messageBus.Publish(connectors.TopicVersion, connectors.VersionInfo{DataWedge: "6.3", MinRequired: "6.4"})
	got := sender.waitForCount(t, 1)
	if got[0].Title != "Unsupported DataWedge version" {
		t.Fatalf("unexpected title %q", got[0].Title)
	}
}

func TestNotificationServiceConnectionStatusFilteringAndFormatting(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startTestNotificationService(t, func() config.AppConfig { return cfg }, func() bool { return false })

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "ip",
		Target:        "127.0.0.1:4403",
	})
	gotNotifications := sender.waitForCount(t, 1)
	if got := gotNotifications[0].Title; got != "IP relay - connected" {
		t.Fatalf("expected connected title, got %q", got)
	}

	// Duplicate consecutive state must be ignored.
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "ip",
		Target:        "127.0.0.1:4403",
	})
	sender.assertCount(t, 1)

	// Reconnecting itself should not notify.
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateReconnecting,
		TransportName: "ip",
	})
	sender.assertCount(t, 1)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:         connectors.ConnectionStateDisconnected,
		TransportName: "serial",
		Target:        "/dev/ttyACM0@115200",
		Err:           "read timeout",
	})
	gotNotifications = sender.waitForCount(t, 2)
	if got := gotNotifications[1].Title; got != "Serial relay - disconnected" {
		t.Fatalf("expected disconnected title, got %q", got)
	}
	if got := gotNotifications[1].Content; got != "/dev/ttyACM0@115200 (error: read timeout)" {
		t.Fatalf("expected disconnected content with error, got %q", got)
	}
}

func TestNotificationServiceForegroundAndPerTypeSettings(t *testing.T) {
	cfg := config.Default()
	var cfgMu sync.RWMutex
	messageBus, sender := startTestNotificationService(t, func() config.AppConfig {
		cfgMu.RLock()
		defer cfgMu.RUnlock()

		return cfg
	}, func() bool { return true })

	scan := connectors.ScanRecord{Barcode: "1", Mode: connectors.ScanModeSingle}

	// Focused app + notify_when_focused=false -> suppressed.
	messageBus.Publish(connectors.TopicScan, scan)
	sender.assertCount(t, 0)

	cfgMu.Lock()
	cfg.Notifications.NotifyWhenFocused = true
	cfgMu.Unlock()
	messageBus.Publish(connectors.TopicScan, scan)
	sender.waitForCount(t, 1)

	cfgMu.Lock()
	cfg.Notifications.Scanned = false
	cfgMu.Unlock()
	messageBus.Publish(connectors.TopicScan, scan)
	sender.assertCount(t, 1)
}

func TestSenderFuncAdaptsFunctions(t *testing.T) {
	var got notifications.Payload
	var sender notifications.Sender = notifications.SenderFunc(func(p notifications.Payload) { got = p })
	sender.Send(notifications.Payload{Title: "t"})
	if got.Title != "t" {
		t.Fatalf("expected payload to be forwarded")
	}
}

func newTestMessageBus(t *testing.T) *bus.PubSubBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(func() {
		messageBus.Close()
	})

	return messageBus
}

type collectingNotificationSender struct {
	mu            sync.Mutex
	notifications []notifications.Payload
	changes       chan struct{}
}

func newCollectingNotificationSender() *collectingNotificationSender {
	return &collectingNotificationSender{
		changes: make(chan struct{}, 1),
	}
}

func (s *collectingNotificationSender) Send(notification notifications.Payload) {
	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *collectingNotificationSender) snapshot() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notifications.Payload, len(s.notifications))
	copy(out, s.notifications)

	return out
}

func (s *collectingNotificationSender) waitForCount(t *testing.T, expected int) []notifications.Payload {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		current := s.snapshot()
		if len(current) >= expected {
			return current
		}
		select {
		case <-s.changes:
		case <-time.After(10 * time.Millisecond):
		}
	}

	t.Fatalf("timed out waiting for %d notifications", expected)

	return nil
}

func (s *collectingNotificationSender) assertCount(t *testing.T, expected int) {
	t.Helper()

	time.Sleep(100 * time.Millisecond)
	current := s.snapshot()
	if len(current) != expected {
		t.Fatalf("expected %d notifications, got %d", expected, len(current))
	}
}
