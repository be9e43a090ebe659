package scanner

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrSuperseded      = errors.New("scan request superseded by a newer request")
	ErrScanningStopped = errors.New("continuous scanning stopped")
	ErrSessionClosed   = errors.New("scan session closed")
	ErrPending         = errors.New("scan request is still pending")
)

// Kind names a request slot. A session holds at most one request per kind.
type Kind string

const (
	KindSingle Kind = "single"
	KindMulti  Kind = "multi"
)

// Request is the handle returned by ScanOnce and StartScanning. It settles
// exactly once: resolved with a barcode or rejected with an error.
type Request struct {
	kind    Kind
	done    chan struct{}
	once    sync.Once
	barcode string
	err     error
	release func(*Request)
}

func newRequest(kind Kind, release func(*Request)) *Request {
	return &Request{
		kind:    kind,
		done:    make(chan struct{}),
		release: release,
	}
}

func (r *Request) Kind() Kind {
	return r.kind
}

// Done is closed once the request is settled.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Result returns the settled outcome, or ErrPending before the request settles.
func (r *Request) Result() (string, error) {
	select {
	case <-r.done:
		return r.barcode, r.err
	default:
		return "", ErrPending
	}
}

// Wait blocks until the request settles or ctx ends. Giving up on ctx does not
// cancel the request; call Cancel to free the slot.
func (r *Request) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.barcode, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel abandons the request. The slot is cleared if it still holds r and r
// is rejected with context.Canceled. Cancelling a settled request is a no-op.
func (r *Request) Cancel() {
	if r.release != nil {
		r.release(r)
	}
	r.settle("", context.Canceled)
}

func (r *Request) resolve(barcode string) bool {
	return r.settle(barcode, nil)
}

func (r *Request) reject(err error) bool {
	return r.settle("", err)
}

func (r *Request) settle(barcode string, err error) bool {
	settled := false
	r.once.Do(func() {
		r.barcode = barcode
		r.err = err
		settled = true
		close(r.done)
	})

	return settled
}
