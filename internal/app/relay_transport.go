package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/wedgego/internal/config"
	"github.com/skobkin/wedgego/internal/transport"
)

var ErrRelayNotConfigured = errors.New("relay transport is not configured")

// RelayTransport is the transport the intent link holds for its whole life.
// The connector behind it is replaced when the connection config changes; the
// old connector is closed so a blocked read fails and the link reconnects.
type RelayTransport struct {
	logger *slog.Logger

	mu         sync.RWMutex
	cfg        config.ConnectionConfig
	connector  transport.Transport
	generation uint64
}

func NewRelayTransport(cfg config.ConnectionConfig) (*RelayTransport, error) {
	connector, err := NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	return &RelayTransport{
		logger:    slog.With("component", "app.relay"),
		cfg:       cfg,
		connector: connector,
	}, nil
}

// NewConnector builds the transport for the configured connector type.
func NewConnector(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorIP:
		return transport.NewIPTransport(cfg.Host, cfg.Port), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	case config.ConnectorBluetooth:
		return transport.NewBluetoothTransport(cfg.BluetoothAddress, cfg.BluetoothAdapter, cfg.BluetoothMTU), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}

// Apply switches to cfg. An unchanged config keeps the current connection.
func (t *RelayTransport) Apply(cfg config.ConnectionConfig) error {
	t.mu.RLock()
	unchanged := t.connector != nil && t.cfg == cfg
	t.mu.RUnlock()
	if unchanged {
		return nil
	}

	next, err := NewConnector(cfg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	prev := t.connector
	t.connector = next
	t.cfg = cfg
	t.generation++
	t.mu.Unlock()

	t.logger.Info("relay connector switched", "transport", next.Name(), "target", ConnectionTarget(cfg))
	if prev != nil {
		if err := prev.Close(); err != nil {
			t.logger.Debug("close previous relay connector", "error", err)
		}
	}

	return nil
}

// Generation counts connector switches.
func (t *RelayTransport) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.generation
}

func (t *RelayTransport) Config() config.ConnectionConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.cfg
}

func (t *RelayTransport) Name() string {
	c := t.current()
	if c == nil {
		return "unknown"
	}

	return c.Name()
}

func (t *RelayTransport) StatusTarget() string {
	t.mu.RLock()
	c := t.connector
	cfg := t.cfg
	t.mu.RUnlock()

	if resolver, ok := c.(transport.StatusTargetResolver); ok {
		if target := strings.TrimSpace(resolver.StatusTarget()); target != "" {
			return target
		}
	}

	return ConnectionTarget(cfg)
}

func (t *RelayTransport) Connect(ctx context.Context) error {
	c := t.current()
	if c == nil {
		return ErrRelayNotConfigured
	}

	return c.Connect(ctx)
}

func (t *RelayTransport) Close() error {
	c := t.current()
	if c == nil {
		return nil
	}

	return c.Close()
}

func (t *RelayTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	t.mu.RLock()
	c := t.connector
	gen := t.generation
	t.mu.RUnlock()
	if c == nil {
		return nil, ErrRelayNotConfigured
	}

	frame, err := c.ReadFrame(ctx)
	if err == nil && t.Generation() != gen {
		// Frame belongs to a connector that was switched out mid-read.
		return nil, transport.ErrNotConnected
	}

	return frame, err
}

func (t *RelayTransport) WriteFrame(ctx context.Context, payload []byte) error {
	c := t.current()
	if c == nil {
		return ErrRelayNotConfigured
	}

	return c.WriteFrame(ctx, payload)
}

func (t *RelayTransport) current() transport.Transport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.connector
}
