// Package audit records the append-only processing history of documents.
// Entries are written inside the transaction of the change they describe.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

// Action names the kind of event an entry records.
type Action string

const (
	ActionUpload       Action = "upload"
	ActionPreprocess   Action = "preprocess"
	ActionClassify     Action = "classify"
	ActionExtract      Action = "extract"
	ActionStatusChange Action = "status_change"
	ActionReview       Action = "review"
	ActionError        Action = "error"
)

// Entry is a single audit record.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"document_id"`
	Action     Action         `json:"action"`
	Details    map[string]any `json:"details"`
	Actor      string         `json:"actor"`
	EngineID   *uuid.UUID     `json:"engine_id"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Transition is one step of a document's status history.
type Transition struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
}

// RecordCommand describes an entry to append.
type RecordCommand struct {
	DocumentID uuid.UUID
	Action     Action
	Details    map[string]any
	EngineID   *uuid.UUID
}

// Record appends an entry using e, which is normally the transaction
// performing the recorded change. The actor is taken from ctx.
func Record(ctx context.Context, e repository.Executor, cmd RecordCommand) error {
	details := cmd.Details
	if details == nil {
		details = map[string]any{}
	}

	_, err := e.ExecContext(
		ctx,
		`INSERT INTO audit_log(document_id, action, details, actor, engine_id)
		VALUES ($1, $2, $3, $4, $5)`,
		cmd.DocumentID,
		cmd.Action,
		repository.NewJSON(details),
		auth.Actor(ctx),
		cmd.EngineID,
	)
	if err != nil {
		return fmt.Errorf("record %s audit: %w", cmd.Action, err)
	}
	return nil
}

// StatusChange appends a status_change entry for a from -> to transition.
// extra is merged into the details.
func StatusChange(ctx context.Context, e repository.Executor, documentID uuid.UUID, from, to string, extra map[string]any) error {
	details := map[string]any{"from": from, "to": to}
	for k, v := range extra {
		details[k] = v
	}
	return Record(ctx, e, RecordCommand{
		DocumentID: documentID,
		Action:     ActionStatusChange,
		Details:    details,
	})
}

// History derives the status transitions from a chronological entry list.
func History(entries []Entry) []Transition {
	var out []Transition
	for _, e := range entries {
		if e.Action != ActionStatusChange {
			continue
		}
		from, _ := e.Details["from"].(string)
		to, _ := e.Details["to"].(string)
		if to == "" {
			continue
		}
		out = append(out, Transition{From: from, To: to, Actor: e.Actor, At: e.CreatedAt})
	}
	return out
}
