package formatting_test

import (
	"errors"
	"testing"

	"github.com/abekarar/openimis-claimslens/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"20MB", 20 * 1024 * 1024, false},
		{"20 MiB", 20 * 1024 * 1024, false},
		{"512", 512, false},
		{"1.5kb", 1536, false},
		{"", 0, true},
		{"ten MB", 0, true},
		{"5QB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{20 * 1024 * 1024, "20 MB"},
	}

	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, 0); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

type payload struct {
	ChfID string  `json:"chf_id"`
	Score float64 `json:"score"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    payload
		wantErr bool
	}{
		{"plain", `{"chf_id":"A1","score":0.9}`, payload{"A1", 0.9}, false},
		{"fenced", "```json\n{\"chf_id\":\"A2\",\"score\":0.5}\n```", payload{"A2", 0.5}, false},
		{"prose wrapped", `Here is the result: {"chf_id":"A3","score":1} hope it helps`, payload{"A3", 1}, false},
		{"garbage", "no json here", payload{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[payload](tt.content)
			if tt.wantErr {
				if !errors.Is(err, formatting.ErrParseFailed) {
					t.Fatalf("error = %v, want ErrParseFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}
