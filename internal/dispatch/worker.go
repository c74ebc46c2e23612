package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abekarar/openimis-claimslens/pkg/lifecycle"
)

// ValidationFunc runs the passes a validation job asks for.
type ValidationFunc func(ctx context.Context, job ValidationJob) error

// WorkerConfig configures a validation queue consumer.
type WorkerConfig struct {
	Concurrency    int
	DequeueTimeout time.Duration
}

// Worker consumes validation jobs from the validation queue.
type Worker struct {
	client redis.UniversalClient
	queue  string
	cfg    WorkerConfig
	handle ValidationFunc
	logger *slog.Logger
}

// NewWorker creates a consumer of queues.Validation that passes each job to handle.
func NewWorker(client redis.UniversalClient, queues Queues, cfg WorkerConfig, handle ValidationFunc, logger *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = 5 * time.Second
	}
	return &Worker{
		client: client,
		queue:  queues.Validation,
		cfg:    cfg,
		handle: handle,
		logger: logger.With("system", "validation-worker"),
	}
}

// Start runs the consumer loops until the lifecycle context is cancelled.
func (w *Worker) Start(lc *lifecycle.Coordinator) error {
	var wg sync.WaitGroup
	for i := range w.cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(lc.Context(), i)
		}()
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		wg.Wait()
		w.logger.Info("validation worker stopped")
	})

	w.logger.Info("validation worker started", "queue", w.queue, "concurrency", w.cfg.Concurrency)
	return nil
}

// Run pops jobs until ctx is cancelled. A job that fails is logged and
// dropped; the document keeps its state and can be validated again.
func (w *Worker) Run(ctx context.Context, id int) {
	logger := w.logger.With("worker_id", id)

	for {
		if ctx.Err() != nil {
			return
		}

		job, ok, err := w.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}

		start := time.Now()
		if err := w.handle(ctx, job); err != nil {
			logger.Warn(
				"validation job failed",
				"document_id", job.DocumentID,
				"types", job.ValidationTypes,
				"error", err,
			)
			continue
		}
		logger.Info(
			"validation job completed",
			"document_id", job.DocumentID,
			"types", job.ValidationTypes,
			"duration", time.Since(start),
		)
	}
}

// next blocks for up to the dequeue timeout. LPUSH plus BRPOP gives
// first-in first-out order.
func (w *Worker) next(ctx context.Context) (ValidationJob, bool, error) {
	res, err := w.client.BRPop(ctx, w.cfg.DequeueTimeout, w.queue).Result()
	if errors.Is(err, redis.Nil) {
		return ValidationJob{}, false, nil
	}
	if err != nil {
		return ValidationJob{}, false, err
	}

	var job ValidationJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		w.logger.Warn("discarding malformed job", "payload", res[1], "error", err)
		return ValidationJob{}, false, nil
	}
	return job, true, nil
}
