// Package settings stores the operator-editable module configuration:
// extraction confidence thresholds and comparison tolerances.
package settings

import (
	"time"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Outcome is the disposition of an extraction given its aggregate confidence.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeReview   Outcome = "review"
	OutcomeFail     Outcome = "fail"
)

// Settings is the singleton module configuration.
type Settings struct {
	AutoApproveThreshold  float64   `json:"auto_approve_threshold"`
	ReviewThreshold       float64   `json:"review_threshold"`
	PartialMatchThreshold float64   `json:"partial_match_threshold"`
	NumericTolerance      float64   `json:"numeric_tolerance"`
	DateFormats           []string  `json:"date_formats"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// UpdateCommand carries a partial settings update. Nil fields keep their
// current value.
type UpdateCommand struct {
	AutoApproveThreshold  *float64 `json:"auto_approve_threshold"`
	ReviewThreshold       *float64 `json:"review_threshold"`
	PartialMatchThreshold *float64 `json:"partial_match_threshold"`
	NumericTolerance      *float64 `json:"numeric_tolerance"`
	DateFormats           []string `json:"date_formats"`
}

// Defaults returns the settings used until an operator stores their own.
func Defaults() Settings {
	return Settings{
		AutoApproveThreshold:  0.90,
		ReviewThreshold:       0.60,
		PartialMatchThreshold: 0.80,
		NumericTolerance:      0.01,
		DateFormats:           []string{"2006-01-02", "02/01/2006", "2006/01/02"},
	}
}

// Apply returns s with the non-nil fields of cmd applied.
func (s Settings) Apply(cmd UpdateCommand) Settings {
	if cmd.AutoApproveThreshold != nil {
		s.AutoApproveThreshold = *cmd.AutoApproveThreshold
	}
	if cmd.ReviewThreshold != nil {
		s.ReviewThreshold = *cmd.ReviewThreshold
	}
	if cmd.PartialMatchThreshold != nil {
		s.PartialMatchThreshold = *cmd.PartialMatchThreshold
	}
	if cmd.NumericTolerance != nil {
		s.NumericTolerance = *cmd.NumericTolerance
	}
	if cmd.DateFormats != nil {
		s.DateFormats = cmd.DateFormats
	}
	return s
}

// Validate enforces 0 <= review <= auto-approve <= 1.
func (s Settings) Validate() error {
	if s.ReviewThreshold < 0 || s.ReviewThreshold > 1 {
		return core.Invalid("review_threshold", "must be between 0 and 1")
	}
	if s.AutoApproveThreshold < 0 || s.AutoApproveThreshold > 1 {
		return core.Invalid("auto_approve_threshold", "must be between 0 and 1")
	}
	if s.ReviewThreshold > s.AutoApproveThreshold {
		return core.Invalid("review_threshold", "must not exceed auto_approve_threshold (%.2f)", s.AutoApproveThreshold)
	}
	if s.PartialMatchThreshold < 0 || s.PartialMatchThreshold > 1 {
		return core.Invalid("partial_match_threshold", "must be between 0 and 1")
	}
	if s.NumericTolerance < 0 {
		return core.Invalid("numeric_tolerance", "must not be negative")
	}
	if len(s.DateFormats) == 0 {
		return core.Invalid("date_formats", "at least one layout is required")
	}
	return nil
}

// Outcome decides what happens to an extraction with the given aggregate
// confidence.
func (s Settings) Outcome(confidence float64) Outcome {
	switch {
	case confidence >= s.AutoApproveThreshold:
		return OutcomeComplete
	case confidence >= s.ReviewThreshold:
		return OutcomeReview
	default:
		return OutcomeFail
	}
}
