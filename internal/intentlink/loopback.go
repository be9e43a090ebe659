package intentlink

import (
	"context"
	"sync"

	"github.com/skobkin/wedgego/internal/datawedge"
)

// Loopback is an in-process Broadcaster. Sent intents are recorded and
// inbound intents are delivered with Inject.
type Loopback struct {
	receivers registry

	mu      sync.Mutex
	sent    []datawedge.Intent
	sendErr error
	onSend  func(datawedge.Intent)
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) SendBroadcast(ctx context.Context, intent datawedge.Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.sendErr != nil {
		err := l.sendErr
		l.mu.Unlock()
		return err
	}
	l.sent = append(l.sent, intent)
	hook := l.onSend
	l.mu.Unlock()

	if hook != nil {
		hook(intent)
	}

	return nil
}

func (l *Loopback) RegisterReceiver(filter Filter, fn func(datawedge.Intent)) (Registration, error) {
	return l.receivers.add(filter, fn), nil
}

// Inject delivers an intent to matching receivers and reports how many received it.
func (l *Loopback) Inject(intent datawedge.Intent) int {
	return l.receivers.dispatch(intent)
}

// FailSends makes every following SendBroadcast return err. A nil err restores sending.
func (l *Loopback) FailSends(err error) {
	l.mu.Lock()
	l.sendErr = err
	l.mu.Unlock()
}

// OnSend installs a hook called after each recorded send, outside of the lock.
func (l *Loopback) OnSend(fn func(datawedge.Intent)) {
	l.mu.Lock()
	l.onSend = fn
	l.mu.Unlock()
}

func (l *Loopback) Sent() []datawedge.Intent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]datawedge.Intent, len(l.sent))
	copy(out, l.sent)
	return out
}

func (l *Loopback) Reset() {
	l.mu.Lock()
	l.sent = nil
	l.mu.Unlock()
}

func (l *Loopback) Receivers() int {
	return l.receivers.count()
}
