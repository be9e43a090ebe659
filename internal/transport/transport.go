package transport

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotConnected is returned by frame I/O on a transport that is not connected.
var ErrNotConnected = errors.New("transport is not connected")

// Transport moves framed intent payloads between the host and the on-device relay.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}

// connectorLogger tags records with the connector kind and the endpoint it talks to.
func connectorLogger(connector string, attrs ...any) *slog.Logger {
	return slog.Default().With(append([]any{"component", "transport", "connector", connector}, attrs...)...)
}
