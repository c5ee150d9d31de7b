package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/calder-ai/relay/internal/store"
	"github.com/calder-ai/relay/internal/store/model"
)

// Ingestor handles the asynchronous persistence of request logs. Writes
// never block the request path: a full buffer drops the entry with a
// warning instead of applying backpressure.
type Ingestor interface {
	Log(log *model.RequestLog)
	Start(ctx context.Context)
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	logChan   chan *model.RequestLog
	batchSize int
	flushTime time.Duration
}

func NewIngestor(logger *zap.Logger, repo store.Repository) Ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		logChan:   make(chan *model.RequestLog, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

func (i *ingestor) Log(log *model.RequestLog) {
	select {
	case i.logChan <- log:
	default:
		i.logger.Warn("audit buffer full, dropping log", zap.String("request_id", log.ID))
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	close(i.logChan)
}

func (i *ingestor) worker(ctx context.Context) {
	batch := make([]*model.RequestLog, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		for _, entry := range batch {
			if err := i.repo.Requests().Log(context.Background(), entry); err != nil {
				i.logger.Error("failed to persist request log", zap.String("id", entry.ID), zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-i.logChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// Noop is used when the store is disabled; the gateway still calls Log.
type Noop struct{}

func (Noop) Log(*model.RequestLog) {}
func (Noop) Start(context.Context) {}
func (Noop) Stop()                 {}
