// Package dispatch hands documents off to the external extraction and
// validation pipelines through Redis list queues.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// PreprocessJob asks the pipeline to preprocess, classify, and extract a document.
type PreprocessJob struct {
	DocumentID     uuid.UUID  `json:"document_id"`
	EngineID       uuid.UUID  `json:"engine_id"`
	StorageKey     string     `json:"storage_key"`
	Language       string     `json:"language,omitempty"`
	DocumentTypeID *uuid.UUID `json:"document_type_id,omitempty"`
	Prompt         string     `json:"prompt"`
}

// ValidationJob asks a worker to run validation passes for a document.
type ValidationJob struct {
	DocumentID      uuid.UUID `json:"document_id"`
	ValidationTypes []string  `json:"validation_types"`
}

// Queues names the Redis lists jobs are pushed onto.
type Queues struct {
	Preprocessing string
	Validation    string
}

// System enqueues pipeline jobs.
type System interface {
	Preprocess(ctx context.Context, job PreprocessJob) error
	Validate(ctx context.Context, job ValidationJob) error
}

type dispatcher struct {
	client redis.UniversalClient
	queues Queues
	logger *slog.Logger
}

// New creates a dispatcher over client.
func New(client redis.UniversalClient, queues Queues, logger *slog.Logger) System {
	return &dispatcher{
		client: client,
		queues: queues,
		logger: logger.With("system", "dispatch"),
	}
}

func (d *dispatcher) Preprocess(ctx context.Context, job PreprocessJob) error {
	return d.push(ctx, d.queues.Preprocessing, job.DocumentID, job)
}

func (d *dispatcher) Validate(ctx context.Context, job ValidationJob) error {
	return d.push(ctx, d.queues.Validation, job.DocumentID, job)
}

func (d *dispatcher) push(ctx context.Context, queue string, documentID uuid.UUID, job any) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := d.client.LPush(ctx, queue, payload).Err(); err != nil {
		return core.External("queue "+queue, err)
	}

	d.logger.Info("job enqueued", "queue", queue, "document_id", documentID)
	return nil
}
