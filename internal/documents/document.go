// Package documents implements the document lifecycle: upload to blob
// storage, routing to an extraction engine, pipeline progress, failure
// and retry, and claim linking. Every status write is guarded by the
// expected current status and serialized per document by a named lock.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded claim document and its processing state.
type Document struct {
	ID                       uuid.UUID  `json:"id"`
	Filename                 string     `json:"filename"`
	ContentType              string     `json:"content_type"`
	SizeBytes                int64      `json:"size_bytes"`
	PageCount                *int       `json:"page_count"`
	StorageKey               string     `json:"storage_key"`
	Status                   Status     `json:"status"`
	ErrorMessage             *string    `json:"error_message"`
	DocumentTypeID           *uuid.UUID `json:"document_type_id"`
	DocumentTypeCode         *string    `json:"document_type_code"`
	ClassificationConfidence *float64   `json:"classification_confidence"`
	EngineID                 *uuid.UUID `json:"engine_id"`
	EngineName               *string    `json:"engine_name"`
	ClaimID                  *uuid.UUID `json:"claim_id"`
	Language                 *string    `json:"language"`
	ProcessingStartedAt      *time.Time `json:"processing_started_at"`
	CompletedAt              *time.Time `json:"completed_at"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// UploadCommand carries a received file. Data holds the raw bytes.
// PageCount is filled for PDFs by the handler via pdfcpu.
type UploadCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	Language    *string
	ClaimID     *uuid.UUID
	PageCount   *int
}

// ProgressCommand reports that the pipeline moved a document forward.
// Classification fields are recorded when present.
type ProgressCommand struct {
	Status                   Status     `json:"status"`
	DocumentTypeID           *uuid.UUID `json:"document_type_id"`
	ClassificationConfidence *float64   `json:"classification_confidence"`
	Language                 *string    `json:"language"`
}

// FailCommand reports a pipeline failure.
type FailCommand struct {
	Message string `json:"message"`
}

// LinkClaimCommand links a registry claim to a document.
type LinkClaimCommand struct {
	ClaimID uuid.UUID `json:"claim_id"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxSize      int64
	AllowedTypes []string
}
