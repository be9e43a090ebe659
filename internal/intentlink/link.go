package intentlink

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/connectors"
	"github.com/skobkin/wedgego/internal/datawedge"
	"github.com/skobkin/wedgego/internal/transport"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 15 * time.Second
	writeTimeout   = 8 * time.Second
)

// Link is a Broadcaster backed by a framed transport to the on-device relay.
// It keeps the transport connected and dispatches decoded intents to receivers.
type Link struct {
	logger    *slog.Logger
	transport transport.Transport
	bus       bus.MessageBus
	receivers registry
	connected atomic.Bool
}

func NewLink(logger *slog.Logger, b bus.MessageBus, tr transport.Transport) *Link {
	if logger == nil {
		logger = slog.Default()
	}

	return &Link{
		logger:    logger,
		transport: tr,
		bus:       b,
	}
}

// Start runs the connector loop until ctx ends. Reads block without a
// deadline, so the transport is closed when ctx is done to unblock them.
func (l *Link) Start(ctx context.Context) {
	context.AfterFunc(ctx, func() {
		_ = l.transport.Close()
	})
	go l.runConnector(ctx)
}

func (l *Link) Connected() bool {
	return l.connected.Load()
}

func (l *Link) SendBroadcast(ctx context.Context, intent datawedge.Intent) error {
	if !l.connected.Load() {
		return transport.ErrNotConnected
	}

	payload, err := datawedge.EncodeIntent(intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	err = l.transport.WriteFrame(writeCtx, payload)
	cancel()
	if err != nil {
		return fmt.Errorf("send intent %s: %w", intent.Action, err)
	}

	l.logger.Debug("intent sent", "intent", intent.String())
	l.publish(connectors.TopicRawFrameOut, rawFrame(payload))
	l.publish(connectors.TopicIntentOut, intent)

	return nil
}

func (l *Link) RegisterReceiver(filter Filter, fn func(datawedge.Intent)) (Registration, error) {
	if fn == nil {
		return nil, fmt.Errorf("receiver callback is required")
	}
	if len(filter.Actions) == 0 {
		return nil, fmt.Errorf("receiver filter has no actions")
	}

	return l.receivers.add(filter, fn), nil
}

func (l *Link) runConnector(ctx context.Context) {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			l.publishConnStatus(connectors.ConnectionStateDisconnected, nil)
			return
		}

		l.publishConnStatus(connectors.ConnectionStateConnecting, nil)
		if err := l.transport.Connect(ctx); err != nil {
			l.publishConnStatus(connectors.ConnectionStateReconnecting, err)
			l.logger.Error("transport connect failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff
		l.connected.Store(true)
		l.publishConnStatus(connectors.ConnectionStateConnected, nil)

		err := l.runReader(ctx)
		l.connected.Store(false)
		_ = l.transport.Close()
		if ctx.Err() != nil {
			l.publishConnStatus(connectors.ConnectionStateDisconnected, nil)
			return
		}
		l.logger.Warn("intent link dropped", "error", err)
		l.publishConnStatus(connectors.ConnectionStateReconnecting, err)

		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (l *Link) runReader(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := l.transport.ReadFrame(ctx)
		if err != nil {
			return err
		}

		l.publish(connectors.TopicRawFrameIn, rawFrame(payload))
		intent, err := datawedge.DecodeIntent(payload)
		if err != nil {
			l.logger.Warn("decode intent failed", "error", err, "len", len(payload))
			continue
		}

		l.logger.Debug("intent received", "intent", intent.String())
		l.publish(connectors.TopicIntentIn, intent)
		if matched := l.receivers.dispatch(intent); matched == 0 {
			l.logger.Debug("no receiver for intent", "action", intent.Action)
		}
	}
}

func (l *Link) publishConnStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: l.transport.Name(),
		Timestamp:     time.Now(),
	}
	if resolver, ok := l.transport.(transport.StatusTargetResolver); ok {
		status.Target = resolver.StatusTarget()
	}
	if err != nil {
		status.Err = err.Error()
	}
	l.publish(connectors.TopicConnStatus, status)
}

func (l *Link) publish(topic string, msg any) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(topic, msg)
}

func rawFrame(payload []byte) connectors.RawFrame {
	return connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)}
}

func nextBackoff(current time.Duration) time.Duration {
	if current < maxBackoff {
		current *= 2
	}
	if current > maxBackoff {
		current = maxBackoff
	}

	return current
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
