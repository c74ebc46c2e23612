package registry_test

import (
	"testing"

	"github.com/abekarar/openimis-claimslens/internal/registry"
)

func TestModelValid(t *testing.T) {
	tests := []struct {
		model registry.Model
		want  bool
	}{
		{registry.ModelInsuree, true},
		{registry.ModelHealthFacility, true},
		{"claim", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tt.model.Valid(); got != tt.want {
			t.Errorf("Model(%q).Valid() = %v, want %v", tt.model, got, tt.want)
		}
	}
}
