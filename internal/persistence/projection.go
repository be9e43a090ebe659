package persistence

import (
	"context"

	"github.com/skobkin/wedgego/internal/bus"
	"github.com/skobkin/wedgego/internal/connectors"
)

// WriteQueue serializes persistence writes from async bus events.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartJournalProjection writes every accepted scan into the journal.
func StartJournalProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, repo *ScanRepo) {
	scanSub := b.Subscribe(connectors.TopicScan)

	go func() {
		defer b.Unsubscribe(scanSub, connectors.TopicScan)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-scanSub:
				if !ok {
					return
				}
				rec, ok := raw.(connectors.ScanRecord)
				if !ok {
					continue
				}
				queue.Enqueue("insert_scan", func(writeCtx context.Context) error {
					_, err := repo.Insert(writeCtx, rec)
					return err
				})
			}
		}
	}()
}
