package worker

import (
	"context"
	"time"

	"users-service/internal/application"
	"users-service/internal/domain"
	"users-service/internal/infrastructure/logx"
	"users-service/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

var (
	_ application.CommitJournal = (*JournalWriter)(nil)
	_ application.Worker        = (*JournalWriter)(nil)
)

const writeTimeout = 5 * time.Second

// JournalWriter moves commit records off the request path. Record never
// blocks: when the buffer is full the record is dropped and counted.
type JournalWriter struct {
	sink    application.CommitJournal
	queue   chan domain.CommitRecord
	metrics *metrics.Metrics
	done    chan struct{}
}

func NewJournalWriter(sink application.CommitJournal, buffer int, m *metrics.Metrics) *JournalWriter {
	if buffer <= 0 {
		buffer = 1
	}
	return &JournalWriter{
		sink:    sink,
		queue:   make(chan domain.CommitRecord, buffer),
		metrics: m,
		done:    make(chan struct{}),
	}
}

func (w *JournalWriter) Record(_ context.Context, rec domain.CommitRecord) error {
	select {
	case w.queue <- rec:
	default:
		w.metrics.JournalDropped()
		logx.L().Warn("journal_writer.dropped", zap.String("tx_id", rec.TxID), zap.Int("buffer", cap(w.queue)))
	}
	return nil
}

// Start drains the queue into the sink until ctx is cancelled, then flushes
// what is still buffered and closes Done.
func (w *JournalWriter) Start(ctx context.Context) {
	defer close(w.done)
	log := logx.L().With(zap.String("worker", "journal"))
	for {
		select {
		case <-ctx.Done():
			n := w.flush()
			log.Info("journal_writer.stop", zap.Int("flushed", n))
			return
		case rec := <-w.queue:
			w.write(context.WithoutCancel(ctx), rec)
		}
	}
}

// Done is closed once Start has returned.
func (w *JournalWriter) Done() <-chan struct{} { return w.done }

func (w *JournalWriter) flush() int {
	n := 0
	for {
		select {
		case rec := <-w.queue:
			w.write(context.Background(), rec)
			n++
		default:
			return n
		}
	}
}

func (w *JournalWriter) write(ctx context.Context, rec domain.CommitRecord) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.JournalFailed()
			logx.L().Warn("journal_writer.panic", zap.String("tx_id", rec.TxID), zap.Any("r", r))
		}
	}()
	c, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := w.sink.Record(c, rec); err != nil {
		w.metrics.JournalFailed()
		logx.L().Warn("journal_writer.failed", zap.String("tx_id", rec.TxID), zap.Error(err))
	}
}
