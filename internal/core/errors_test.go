package core_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

func TestMapHTTPStatus(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.Invalid("weights", "must sum to 1"), http.StatusBadRequest},
		{"illegal", core.Illegal("document", "pending", "run validation"), http.StatusConflict},
		{"conflict wrapped", fmt.Errorf("process: %w", core.Conflict("document", id)), http.StatusConflict},
		{"no engine", &core.NoEngineAvailableError{Language: "fr"}, http.StatusUnprocessableEntity},
		{"already linked", &core.AlreadyLinkedError{DocumentID: "d", ClaimID: "c"}, http.StatusConflict},
		{"external", core.External("registry", errors.New("connection refused")), http.StatusBadGateway},
		{"external timeout", core.External("registry", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unrelated", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExternalUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := core.External("registry", cause)

	if !errors.Is(err, cause) {
		t.Error("ExternalCallFailure should unwrap to its cause")
	}
	if !errors.Is(err, core.ErrExternalCall) {
		t.Error("ExternalCallFailure should match ErrExternalCall")
	}
	if core.External("registry", nil) != nil {
		t.Error("External(nil) should be nil")
	}
}

func TestKinds(t *testing.T) {
	var k interface{ Kind() string }
	if !errors.As(fmt.Errorf("wrap: %w", core.Illegal("proposal", "proposed", "apply")), &k) {
		t.Fatal("wrapped taxonomy error should expose Kind")
	}
	if k.Kind() != "illegal_transition" {
		t.Errorf("Kind = %q", k.Kind())
	}
}
