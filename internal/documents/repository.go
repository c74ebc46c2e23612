package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/audit"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/dispatch"
	"github.com/abekarar/openimis-claimslens/internal/prompts"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/routing"
	"github.com/abekarar/openimis-claimslens/pkg/formatting"
	"github.com/abekarar/openimis-claimslens/pkg/lock"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
	"github.com/abekarar/openimis-claimslens/pkg/storage"
)

// DefaultLanguage is routed when a document has no language tag.
const DefaultLanguage = "en"

type repo struct {
	db         *sql.DB
	storage    storage.System
	locker     lock.Locker
	lockTTL    time.Duration
	routing    routing.System
	prompts    prompts.System
	registry   registry.System
	dispatch   dispatch.System
	upload     UploadConfig
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the document lifecycle system.
func New(
	db *sql.DB,
	store storage.System,
	locker lock.Locker,
	lockTTL time.Duration,
	router routing.System,
	promptSys prompts.System,
	reg registry.System,
	queue dispatch.System,
	upload UploadConfig,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		locker:     locker,
		lockTTL:    lockTTL,
		routing:    router,
		prompts:    promptSys,
		registry:   reg,
		dispatch:   queue,
		upload:     upload,
		logger:     logger.With("system", "documents"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination, r.upload.MaxSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "ErrorMessage")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	docs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	result := pagination.NewPageResultFor(docs, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := find(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repo) Upload(ctx context.Context, cmd UploadCommand) (*Document, error) {
	if err := r.checkUpload(cmd); err != nil {
		return nil, err
	}

	if cmd.ClaimID != nil {
		if _, err := r.registry.Claim(ctx, *cmd.ClaimID); err != nil {
			return nil, err
		}
	}

	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	q := `
		INSERT INTO documents(id, filename, content_type, size_bytes, page_count, storage_key, language, claim_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	args := []any{
		id,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		normalizeLanguage(cmd.Language),
		cmd.ClaimID,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return Document{}, err
		}

		if err := audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: id,
			Action:     audit.ActionUpload,
			Details: map[string]any{
				"filename":  cmd.Filename,
				"mime_type": cmd.ContentType,
				"file_size": len(cmd.Data),
			},
		}); err != nil {
			return Document{}, err
		}

		return find(ctx, tx, id)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"document uploaded",
		"id", d.ID,
		"filename", d.Filename,
		"size", formatting.FormatBytes(d.SizeBytes, 1),
	)
	return &d, nil
}

func (r *repo) Download(ctx context.Context, id uuid.UUID) (*Document, *storage.Blob, error) {
	d, err := find(ctx, r.db, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := r.storage.Download(ctx, d.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("download %s: %w", d.StorageKey, err)
	}
	return &d, blob, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	var key string

	err := r.guard(ctx, id, func(ctx context.Context) error {
		d, err := find(ctx, r.db, id)
		if err != nil {
			return err
		}

		switch d.Status {
		case StatusPending, StatusFailed, StatusCompleted:
		default:
			return core.Illegal("document", string(d.Status), "delete")
		}

		key = d.StorageKey
		_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
			return struct{}{}, repository.ExecExpectOne(
				ctx, tx,
				"DELETE FROM documents WHERE id = $1 AND status = $2",
				id, d.Status,
			)
		})
		if errors.Is(err, sql.ErrNoRows) {
			return core.Conflict("document", id)
		}
		return err
	})
	if err != nil {
		return err
	}

	if delErr := r.storage.Delete(ctx, key); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", key,
			"error", delErr,
		)
	}

	r.logger.Info("document deleted", "id", id)
	return nil
}

func (r *repo) Process(ctx context.Context, id uuid.UUID) (*Document, error) {
	var out Document

	err := r.guard(ctx, id, func(ctx context.Context) error {
		d, err := find(ctx, r.db, id)
		if err != nil {
			return err
		}

		if d.Status != StatusPending && d.Status != StatusFailed {
			return core.Illegal("document", string(d.Status), "process")
		}

		lang := DefaultLanguage
		if d.Language != nil && *d.Language != "" {
			lang = *d.Language
		}

		decision, err := r.routing.Route(ctx, routing.Request{
			Language:       lang,
			DocumentTypeID: d.DocumentTypeID,
		})
		if errors.Is(err, core.ErrNoEngineAvailable) {
			if ferr := r.routingFailed(ctx, &d, err); ferr != nil {
				return ferr
			}
			return err
		}
		if err != nil {
			return fmt.Errorf("route document: %w", err)
		}

		prompt, err := r.prompts.Resolve(ctx, prompts.TypeExtraction, d.DocumentTypeID)
		if err != nil {
			return fmt.Errorf("resolve extraction prompt: %w", err)
		}

		out, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
			if err := Transition(ctx, tx, id, d.Status, StatusPreprocessing, nil, nil); err != nil {
				return Document{}, err
			}

			if _, err := tx.ExecContext(
				ctx,
				"UPDATE documents SET engine_id = $1 WHERE id = $2",
				decision.EngineID, id,
			); err != nil {
				return Document{}, fmt.Errorf("assign engine: %w", err)
			}

			details := map[string]any{
				"engine":        decision.EngineName,
				"reason":        decision.Reason,
				"prompt_source": prompt.Source,
			}
			if decision.RuleID != nil {
				details["rule_id"] = decision.RuleID.String()
			}
			if decision.Utility != nil {
				details["utility"] = *decision.Utility
			}
			if err := audit.Record(ctx, tx, audit.RecordCommand{
				DocumentID: id,
				Action:     audit.ActionPreprocess,
				Details:    details,
				EngineID:   &decision.EngineID,
			}); err != nil {
				return Document{}, err
			}

			// Enqueued inside the transaction: a failed push rolls the
			// transition back and the document stays retriable.
			if err := r.dispatch.Preprocess(ctx, dispatch.PreprocessJob{
				DocumentID:     id,
				EngineID:       decision.EngineID,
				StorageKey:     d.StorageKey,
				Language:       lang,
				DocumentTypeID: d.DocumentTypeID,
				Prompt:         prompt.Content,
			}); err != nil {
				return Document{}, err
			}

			return find(ctx, tx, id)
		})
		if err != nil {
			return err
		}

		r.logger.Info(
			"document processed",
			"id", id,
			"engine", decision.EngineName,
			"reason", decision.Reason,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// routingFailed records a routing failure on d. A document already in
// failed keeps its status and takes the new message.
func (r *repo) routingFailed(ctx context.Context, d *Document, cause error) error {
	msg := cause.Error()

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if d.Status == StatusFailed {
			err := repository.ExecExpectOne(
				ctx, tx,
				"UPDATE documents SET error_message = $1, updated_at = now() WHERE id = $2 AND status = $3",
				msg, d.ID, StatusFailed,
			)
			if errors.Is(err, sql.ErrNoRows) {
				return struct{}{}, core.Conflict("document", d.ID)
			}
			if err != nil {
				return struct{}{}, err
			}
		} else if err := Transition(ctx, tx, d.ID, d.Status, StatusFailed, &msg, nil); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: d.ID,
			Action:     audit.ActionError,
			Details:    map[string]any{"stage": "routing", "error": msg},
		})
	})
	if err != nil {
		return fmt.Errorf("record routing failure: %w", err)
	}

	r.logger.Warn("document routing failed", "id", d.ID, "error", msg)
	return nil
}

func (r *repo) Retry(ctx context.Context, id uuid.UUID) (*Document, error) {
	return r.mutate(ctx, id, func(ctx context.Context, tx *sql.Tx, d Document) error {
		if d.Status != StatusFailed {
			return core.Illegal("document", string(d.Status), "retry")
		}

		if err := Transition(ctx, tx, id, StatusFailed, StatusPending, nil, map[string]any{"action": "retry"}); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "UPDATE documents SET engine_id = NULL WHERE id = $1", id)
		return err
	}, "document retried")
}

func (r *repo) Advance(ctx context.Context, id uuid.UUID, cmd ProgressCommand) (*Document, error) {
	if cmd.Status != StatusClassifying && cmd.Status != StatusExtracting {
		return nil, core.Invalid("status", "must be classifying or extracting")
	}
	if c := cmd.ClassificationConfidence; c != nil && (*c < 0 || *c > 1) {
		return nil, core.Invalid("classification_confidence", "must be between 0 and 1")
	}

	return r.mutate(ctx, id, func(ctx context.Context, tx *sql.Tx, d Document) error {
		if Terminal(d.Status) {
			return core.Illegal("document", string(d.Status), "record progress")
		}

		if err := Transition(ctx, tx, id, d.Status, cmd.Status, nil, nil); err != nil {
			return err
		}

		if cmd.DocumentTypeID == nil && cmd.ClassificationConfidence == nil && cmd.Language == nil {
			return nil
		}

		_, err := tx.ExecContext(
			ctx,
			`UPDATE documents SET
				document_type_id = COALESCE($1, document_type_id),
				classification_confidence = COALESCE($2, classification_confidence),
				language = COALESCE($3, language)
			WHERE id = $4`,
			cmd.DocumentTypeID, cmd.ClassificationConfidence, normalizeLanguage(cmd.Language), id,
		)
		if repository.IsForeignKeyViolation(err) {
			return ErrUnknownDocumentType
		}
		if err != nil {
			return fmt.Errorf("record classification: %w", err)
		}

		details := map[string]any{}
		if cmd.DocumentTypeID != nil {
			details["document_type_id"] = cmd.DocumentTypeID.String()
		}
		if cmd.ClassificationConfidence != nil {
			details["confidence"] = *cmd.ClassificationConfidence
		}
		if l := normalizeLanguage(cmd.Language); l != nil {
			details["language"] = *l
		}

		return audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: id,
			Action:     audit.ActionClassify,
			Details:    details,
			EngineID:   d.EngineID,
		})
	}, "document advanced")
}

func (r *repo) Fail(ctx context.Context, id uuid.UUID, cmd FailCommand) (*Document, error) {
	if cmd.Message == "" {
		return nil, core.Invalid("message", "is required")
	}

	return r.mutate(ctx, id, func(ctx context.Context, tx *sql.Tx, d Document) error {
		if !Processing(d.Status) {
			return core.Illegal("document", string(d.Status), "fail")
		}

		if err := Transition(ctx, tx, id, d.Status, StatusFailed, &cmd.Message, nil); err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: id,
			Action:     audit.ActionError,
			Details:    map[string]any{"stage": string(d.Status), "error": cmd.Message},
			EngineID:   d.EngineID,
		})
	}, "document failed")
}

func (r *repo) LinkClaim(ctx context.Context, id uuid.UUID, cmd LinkClaimCommand) (*Document, error) {
	if cmd.ClaimID == uuid.Nil {
		return nil, core.Invalid("claim_id", "is required")
	}

	return r.mutate(ctx, id, func(ctx context.Context, tx *sql.Tx, d Document) error {
		if d.ClaimID != nil {
			return &core.AlreadyLinkedError{DocumentID: id.String(), ClaimID: d.ClaimID.String()}
		}

		if _, err := r.registry.Claim(ctx, cmd.ClaimID); err != nil {
			return err
		}

		err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE documents SET claim_id = $1, updated_at = now() WHERE id = $2 AND claim_id IS NULL",
			cmd.ClaimID, id,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Conflict("document", id)
		}
		if err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: id,
			Action:     audit.ActionStatusChange,
			Details:    map[string]any{"action": "link_to_claim", "claim_id": cmd.ClaimID.String()},
		})
	}, "document linked to claim")
}

// mutate runs fn in a transaction under the document lock, with the
// document as read at the start of the transaction, and returns the
// updated document.
func (r *repo) mutate(
	ctx context.Context,
	id uuid.UUID,
	fn func(ctx context.Context, tx *sql.Tx, d Document) error,
	msg string,
) (*Document, error) {
	var out Document

	err := r.guard(ctx, id, func(ctx context.Context) error {
		var err error
		out, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
			d, err := find(ctx, tx, id)
			if err != nil {
				return Document{}, err
			}
			if err := fn(ctx, tx, d); err != nil {
				return Document{}, err
			}
			return find(ctx, tx, id)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(msg, "id", id, "status", out.Status)
	return &out, nil
}

// guard runs fn under the document lock. A held lock is a ConflictError.
func (r *repo) guard(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	err := lock.Guard(ctx, r.locker, LockName(id), r.lockTTL, r.logger, fn)
	if errors.Is(err, lock.ErrHeld) {
		return core.Conflict("document", id)
	}
	return err
}

func (r *repo) checkUpload(cmd UploadCommand) error {
	if len(cmd.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidFile)
	}
	if r.upload.MaxSize > 0 && int64(len(cmd.Data)) > r.upload.MaxSize {
		return fmt.Errorf(
			"%w: %s exceeds %s",
			ErrFileTooLarge,
			formatting.FormatBytes(int64(len(cmd.Data)), 1),
			formatting.FormatBytes(r.upload.MaxSize, 1),
		)
	}
	if len(r.upload.AllowedTypes) > 0 && !slices.Contains(r.upload.AllowedTypes, cmd.ContentType) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, cmd.ContentType)
	}
	return nil
}

func find(ctx context.Context, q repository.Querier, id uuid.UUID) (Document, error) {
	s, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, q, s, args, scanDocument)
	if err != nil {
		return Document{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return d, nil
}

func normalizeLanguage(lang *string) *string {
	if lang == nil {
		return nil
	}
	l := strings.ToLower(strings.TrimSpace(*lang))
	if l == "" {
		return nil
	}
	return &l
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "document"
	}
	return url.PathEscape(name)
}
