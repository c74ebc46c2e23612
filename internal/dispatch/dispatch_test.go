package dispatch_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/dispatch"
)

var queues = dispatch.Queues{
	Preprocessing: "claimlens.preprocessing",
	Validation:    "claimlens.validation",
}

func setup(t *testing.T) (*miniredis.Miniredis, dispatch.System) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, dispatch.New(client, queues, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPreprocessEnqueuesJSON(t *testing.T) {
	mr, d := setup(t)

	job := dispatch.PreprocessJob{
		DocumentID: uuid.New(),
		EngineID:   uuid.New(),
		StorageKey: "documents/a/claim.pdf",
		Language:   "fr",
		Prompt:     "extract",
	}
	require.NoError(t, d.Preprocess(context.Background(), job))

	items, err := mr.List(queues.Preprocessing)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var got dispatch.PreprocessJob
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	assert.Equal(t, job, got)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(items[0]), &raw))
	assert.NotContains(t, raw, "document_type_id")
	assert.Equal(t, job.DocumentID.String(), raw["document_id"])
}

func TestValidateEnqueuesNewestFirst(t *testing.T) {
	mr, d := setup(t)
	ctx := context.Background()

	first := dispatch.ValidationJob{DocumentID: uuid.New(), ValidationTypes: []string{"upstream"}}
	second := dispatch.ValidationJob{DocumentID: uuid.New(), ValidationTypes: []string{"upstream", "downstream"}}
	require.NoError(t, d.Validate(ctx, first))
	require.NoError(t, d.Validate(ctx, second))

	items, err := mr.List(queues.Validation)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var head dispatch.ValidationJob
	require.NoError(t, json.Unmarshal([]byte(items[0]), &head))
	assert.Equal(t, second, head)

	assert.False(t, mr.Exists(queues.Preprocessing))
}

func TestEnqueueFailureIsExternal(t *testing.T) {
	mr, d := setup(t)
	mr.Close()

	err := d.Validate(context.Background(), dispatch.ValidationJob{DocumentID: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrExternalCall))
}

func TestWorkerConsumesInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := dispatch.New(client, queues, logger)

	first := dispatch.ValidationJob{DocumentID: uuid.New(), ValidationTypes: []string{"upstream"}}
	second := dispatch.ValidationJob{DocumentID: uuid.New(), ValidationTypes: []string{"downstream"}}
	require.NoError(t, d.Validate(context.Background(), first))
	_, err := mr.Lpush(queues.Validation, "not json")
	require.NoError(t, err)
	require.NoError(t, d.Validate(context.Background(), second))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan dispatch.ValidationJob, 2)
	handle := func(_ context.Context, job dispatch.ValidationJob) error {
		got <- job
		if len(got) == 2 {
			cancel()
		}
		return errors.New("ignored")
	}

	w := dispatch.NewWorker(client, queues, dispatch.WorkerConfig{DequeueTimeout: 100 * time.Millisecond}, handle, logger)

	done := make(chan struct{})
	go func() {
		w.Run(ctx, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("worker did not stop")
	}

	require.Len(t, got, 2)
	assert.Equal(t, first, <-got)
	assert.Equal(t, second, <-got)
	assert.False(t, mr.Exists(queues.Validation))
}
