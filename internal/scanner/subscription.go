package scanner

import (
	"sync"

	"github.com/skobkin/wedgego/internal/connectors"
)

const subscriptionBuffer = 64

// Subscription receives BarcodeScanned events while continuous scanning is active.
type Subscription struct {
	ch      chan connectors.BarcodeScanned
	once    sync.Once
	release func(*Subscription)
}

// Events is closed when the subscription or its session is closed.
func (s *Subscription) Events() <-chan connectors.BarcodeScanned {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.release(s)
	})
}

// deliver never blocks. A full buffer drops its oldest event.
func (s *Subscription) deliver(ev connectors.BarcodeScanned) bool {
	select {
	case s.ch <- ev:
		return true
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}

	return false
}
