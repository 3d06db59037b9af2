package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/kafka"
	"github.com/jmehdipour/clinic-notify/internal/logger"
	"github.com/jmehdipour/clinic-notify/internal/model"
	"github.com/jmehdipour/clinic-notify/internal/repository"
	"go.uber.org/zap"
)

// Fetcher is the consumer side of the notification events topic.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AuditWorker:
// - fetches notification events from Kafka,
// - buffers them and flushes to ClickHouse by size or time,
// - commits offsets only after a successful flush (at-least-once; the
//   ReplacingMergeTree table collapses replays by event id).
type AuditWorker struct {
	Consumer Fetcher
	Events   repository.EventLog
	Log      *zap.Logger

	BatchSize int           // max buffered events per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewAuditWorker(consumer Fetcher, events repository.EventLog, log *zap.Logger) *AuditWorker {
	return &AuditWorker{
		Consumer:  consumer,
		Events:    events,
		Log:       logger.OrNop(log),
		BatchSize: 500,
		BatchWait: 2 * time.Second,
	}
}

// Run blocks until ctx is cancelled, flushing what it holds on the way out.
func (w *AuditWorker) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 2 * time.Second
	}

	msgCh := make(chan kafka.Message, w.BatchSize)

	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.Log.Warn("kafka fetch failed", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	w.runBatchWriter(ctx, msgCh)
	return nil
}

const (
	minFlushBackoff = 100 * time.Millisecond
	maxFlushBackoff = 30 * time.Second
)

// runBatchWriter stops reading once the buffer holds BatchSize messages and
// a flush is failing; failed flushes are retried with exponential backoff.
func (w *AuditWorker) runBatchWriter(ctx context.Context, in <-chan kafka.Message) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		events  []model.Event
		pending []kafka.Message

		backoff time.Duration // non-zero while inserts fail
		retry   <-chan time.Time
	)

	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if len(events) > 0 {
			if err := w.Events.InsertBatch(ctx, events); err != nil {
				w.Log.Error("event batch insert failed", zap.Int("events", len(events)), zap.Error(err))
				return err
			}
		}
		if err := w.Consumer.Commit(ctx, pending...); err != nil {
			w.Log.Error("kafka commit failed", zap.Error(err))
		}
		w.Log.Debug("events flushed", zap.Int("events", len(events)), zap.Int("messages", len(pending)))
		events = events[:0]
		pending = pending[:0]
		return nil
	}

	flushNow := func() {
		if err := flush(ctx); err != nil {
			backoff = min(max(backoff*2, minFlushBackoff), maxFlushBackoff)
			retry = time.After(backoff)
			return
		}
		backoff, retry = 0, nil
	}

	// the shutdown flush must outlive the cancelled run context
	final := func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = flush(fctx)
	}

	for {
		src := in
		if len(pending) >= w.BatchSize {
			src = nil
		}

		select {
		case <-ctx.Done():
			final()
			return

		case m, ok := <-src:
			if !ok {
				final()
				return
			}
			pending = append(pending, m)
			e, err := kafka.DecodeEvent(m)
			if err != nil || e.ID == "" {
				// poison: committed with the batch, never inserted
				w.Log.Warn("skipping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
			} else {
				events = append(events, e)
			}

			if len(pending) >= w.BatchSize && backoff == 0 {
				flushNow()
			}

		case <-tick.C:
			if backoff == 0 {
				flushNow()
			}

		case <-retry:
			flushNow()
		}
	}
}
