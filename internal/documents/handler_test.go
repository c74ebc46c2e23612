package documents_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/documents"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/storage"
)

type mockSystem struct {
	listFn      func(ctx context.Context, page pagination.PageRequest, filters documents.Filters) (*pagination.PageResult[documents.Document], error)
	findFn      func(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	uploadFn    func(ctx context.Context, cmd documents.UploadCommand) (*documents.Document, error)
	downloadFn  func(ctx context.Context, id uuid.UUID) (*documents.Document, *storage.Blob, error)
	deleteFn    func(ctx context.Context, id uuid.UUID) error
	processFn   func(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	retryFn     func(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	advanceFn   func(ctx context.Context, id uuid.UUID, cmd documents.ProgressCommand) (*documents.Document, error)
	failFn      func(ctx context.Context, id uuid.UUID, cmd documents.FailCommand) (*documents.Document, error)
	linkClaimFn func(ctx context.Context, id uuid.UUID, cmd documents.LinkClaimCommand) (*documents.Document, error)
}

func (m *mockSystem) Handler() *documents.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters documents.Filters) (*pagination.PageResult[documents.Document], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Upload(ctx context.Context, cmd documents.UploadCommand) (*documents.Document, error) {
	return m.uploadFn(ctx, cmd)
}

func (m *mockSystem) Download(ctx context.Context, id uuid.UUID) (*documents.Document, *storage.Blob, error) {
	return m.downloadFn(ctx, id)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Process(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	return m.processFn(ctx, id)
}

func (m *mockSystem) Retry(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	return m.retryFn(ctx, id)
}

func (m *mockSystem) Advance(ctx context.Context, id uuid.UUID, cmd documents.ProgressCommand) (*documents.Document, error) {
	return m.advanceFn(ctx, id, cmd)
}

func (m *mockSystem) Fail(ctx context.Context, id uuid.UUID, cmd documents.FailCommand) (*documents.Document, error) {
	return m.failFn(ctx, id, cmd)
}

func (m *mockSystem) LinkClaim(ctx context.Context, id uuid.UUID, cmd documents.LinkClaimCommand) (*documents.Document, error) {
	return m.linkClaimFn(ctx, id, cmd)
}

func newTestHandler(sys documents.System) *documents.Handler {
	return documents.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		1<<20,
	)
}

func setupMux(h *documents.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandlerUpload(t *testing.T) {
	claimID := uuid.New()

	var captured documents.UploadCommand
	sys := &mockSystem{
		uploadFn: func(_ context.Context, cmd documents.UploadCommand) (*documents.Document, error) {
			captured = cmd
			return &documents.Document{ID: uuid.New(), Filename: cmd.Filename, Status: documents.StatusPending}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	body, ct := multipartBody(t, "scan.png", "image/png", []byte("png-bytes"), map[string]string{
		"language":   "fr",
		"claim_uuid": claimID.String(),
	})
	req := httptest.NewRequest("POST", "/documents", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Filename != "scan.png" || captured.ContentType != "image/png" {
		t.Errorf("captured = %q %q", captured.Filename, captured.ContentType)
	}
	if captured.Language == nil || *captured.Language != "fr" {
		t.Errorf("Language = %v", captured.Language)
	}
	if captured.ClaimID == nil || *captured.ClaimID != claimID {
		t.Errorf("ClaimID = %v", captured.ClaimID)
	}
	if captured.PageCount != nil {
		t.Errorf("PageCount = %v, want nil for an image", captured.PageCount)
	}
}

func TestHandlerUploadRejects(t *testing.T) {
	sys := &mockSystem{
		uploadFn: func(_ context.Context, cmd documents.UploadCommand) (*documents.Document, error) {
			return nil, documents.ErrUnsupportedType
		},
	}
	mux := setupMux(newTestHandler(sys))

	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), nil)
		req := httptest.NewRequest("POST", "/documents", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("status = %d, want 415", rec.Code)
		}
	})

	t.Run("bad claim uuid", func(t *testing.T) {
		body, ct := multipartBody(t, "scan.png", "image/png", []byte("x"), map[string]string{"claim_uuid": "nope"})
		req := httptest.NewRequest("POST", "/documents", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 3<<20), nil)
		req := httptest.NewRequest("POST", "/documents", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})
}

func TestHandlerProcessErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"illegal", core.Illegal("document", "completed", "process"), http.StatusConflict, "illegal_transition"},
		{"conflict", core.Conflict("document", uuid.New()), http.StatusConflict, "conflict"},
		{"no engine", &core.NoEngineAvailableError{Language: "fr"}, http.StatusUnprocessableEntity, "no_engine_available"},
		{"not found", documents.ErrNotFound, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				processFn: func(context.Context, uuid.UUID) (*documents.Document, error) {
					return nil, tt.err
				},
			}
			mux := setupMux(newTestHandler(sys))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/documents/"+uuid.NewString()+"/process", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["kind"] != tt.wantKind {
				t.Errorf("kind = %q, want %q", body["kind"], tt.wantKind)
			}
		})
	}
}

func TestHandlerLinkClaim(t *testing.T) {
	claimID := uuid.New()
	sys := &mockSystem{
		linkClaimFn: func(_ context.Context, id uuid.UUID, cmd documents.LinkClaimCommand) (*documents.Document, error) {
			if cmd.ClaimID != claimID {
				t.Errorf("ClaimID = %s", cmd.ClaimID)
			}
			return nil, &core.AlreadyLinkedError{DocumentID: id.String(), ClaimID: uuid.NewString()}
		},
	}
	mux := setupMux(newTestHandler(sys))

	body := `{"claim_id":"` + claimID.String() + `"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/documents/"+uuid.NewString()+"/link-claim", strings.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandlerProgress(t *testing.T) {
	dt := uuid.New()
	var captured documents.ProgressCommand
	sys := &mockSystem{
		advanceFn: func(_ context.Context, id uuid.UUID, cmd documents.ProgressCommand) (*documents.Document, error) {
			captured = cmd
			return &documents.Document{ID: id, Status: cmd.Status}, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	body := `{"status":"extracting","document_type_id":"` + dt.String() + `","classification_confidence":0.92,"language":"en"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/documents/"+uuid.NewString()+"/progress", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Status != documents.StatusExtracting {
		t.Errorf("Status = %s", captured.Status)
	}
	if captured.DocumentTypeID == nil || *captured.DocumentTypeID != dt {
		t.Errorf("DocumentTypeID = %v", captured.DocumentTypeID)
	}
	if captured.ClassificationConfidence == nil || *captured.ClassificationConfidence != 0.92 {
		t.Errorf("ClassificationConfidence = %v", captured.ClassificationConfidence)
	}
}

func TestHandlerDownload(t *testing.T) {
	id := uuid.New()
	sys := &mockSystem{
		downloadFn: func(context.Context, uuid.UUID) (*documents.Document, *storage.Blob, error) {
			return &documents.Document{ID: id, Filename: "claim form.pdf", ContentType: "application/pdf"},
				&storage.Blob{Body: io.NopCloser(strings.NewReader("%PDF")), Size: 4},
				nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/documents/"+id.String()+"/download", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="claim form.pdf"`) {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "%PDF" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandlerListFilters(t *testing.T) {
	var captured documents.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f documents.Filters) (*pagination.PageResult[documents.Document], error) {
			captured = f
			result := pagination.NewPageResult([]documents.Document{}, 0, 1, 20)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/documents?status=review_required&linked=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if captured.Status == nil || *captured.Status != documents.StatusReviewRequired {
		t.Errorf("Status = %v", captured.Status)
	}
	if captured.Linked == nil || !*captured.Linked {
		t.Errorf("Linked = %v", captured.Linked)
	}
}
