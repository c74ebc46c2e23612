// Package routing decides which engine processes a document. Explicit
// routing rules are tried first in priority order; without a matching rule
// the engines' capability scores are combined with the routing policy
// weights, and the primary or fallback engine covers languages that have
// no scores.
package routing

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/capabilities"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/engines"
)

const (
	DefaultPriority = 50
	weightTolerance = 0.001
)

// Policy holds the weights of the scoring utility.
type Policy struct {
	AccuracyWeight float64    `json:"accuracy_weight"`
	CostWeight     float64    `json:"cost_weight"`
	SpeedWeight    float64    `json:"speed_weight"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

// DefaultPolicy is used until an operator stores a policy.
func DefaultPolicy() Policy {
	return Policy{AccuracyWeight: 0.50, CostWeight: 0.30, SpeedWeight: 0.20}
}

// Validate requires each weight in [0,1] and a sum of 1.
func (p Policy) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"accuracy_weight", p.AccuracyWeight},
		{"cost_weight", p.CostWeight},
		{"speed_weight", p.SpeedWeight},
	}
	for _, w := range weights {
		if w.value < 0 || w.value > 1 {
			return core.Invalid(w.name, "must be between 0 and 1")
		}
	}
	sum := p.AccuracyWeight + p.CostWeight + p.SpeedWeight
	if math.Abs(sum-1) > weightTolerance {
		return core.Invalid("weights", "must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Rule is an explicit engine override. Nil Language or DocumentTypeID
// match any value.
type Rule struct {
	ID             uuid.UUID  `json:"id"`
	EngineID       uuid.UUID  `json:"engine_config_id"`
	EngineName     string     `json:"engine_name"`
	Language       *string    `json:"language"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	MinConfidence  float64    `json:"min_confidence"`
	Priority       int        `json:"priority"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// RuleCommand carries the fields of a rule create or update.
type RuleCommand struct {
	EngineID       uuid.UUID  `json:"engine_config_id"`
	Language       *string    `json:"language"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	MinConfidence  float64    `json:"min_confidence"`
	Priority       *int       `json:"priority"`
	IsActive       *bool      `json:"is_active"`
}

// Validate checks ranges and normalizes the language.
func (c *RuleCommand) Validate() error {
	if c.EngineID == uuid.Nil {
		return core.Invalid("engine_config_id", "is required")
	}
	if c.Language != nil {
		l := strings.ToLower(strings.TrimSpace(*c.Language))
		if l == "" {
			c.Language = nil
		} else {
			c.Language = &l
		}
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return core.Invalid("min_confidence", "must be between 0 and 1")
	}
	if c.Priority == nil {
		p := DefaultPriority
		c.Priority = &p
	}
	if *c.Priority < 0 || *c.Priority > 100 {
		return core.Invalid("priority", "must be between 0 and 100")
	}
	return nil
}

func (c *RuleCommand) active() bool {
	return c.IsActive == nil || *c.IsActive
}

// Request is the input of a routing decision.
type Request struct {
	Language       string     `json:"language"`
	DocumentTypeID *uuid.UUID `json:"document_type_id"`
	// MinConfidence, when set, raises every rule's threshold and drops
	// scored candidates whose accuracy falls below it.
	MinConfidence *float64 `json:"min_confidence"`
}

// Validate checks the request.
func (r *Request) Validate() error {
	r.Language = strings.ToLower(strings.TrimSpace(r.Language))
	if r.Language == "" {
		return core.Invalid("language", "is required")
	}
	if r.MinConfidence != nil && (*r.MinConfidence < 0 || *r.MinConfidence > 1) {
		return core.Invalid("min_confidence", "must be between 0 and 1")
	}
	return nil
}

// Reason records which step of the algorithm produced a decision.
type Reason string

const (
	ReasonRule     Reason = "rule"
	ReasonScore    Reason = "score"
	ReasonPrimary  Reason = "primary"
	ReasonFallback Reason = "fallback"
)

// Candidate is a scored engine considered by the weighted step.
type Candidate struct {
	EngineID   uuid.UUID `json:"engine_id"`
	EngineName string    `json:"engine_name"`
	Utility    float64   `json:"utility"`
}

// Decision is the outcome of routing.
type Decision struct {
	EngineID   uuid.UUID   `json:"engine_id"`
	EngineName string      `json:"engine_name"`
	Reason     Reason      `json:"reason"`
	RuleID     *uuid.UUID  `json:"rule_id,omitempty"`
	Utility    *float64    `json:"utility,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Snapshot is the configuration state a decision is computed from.
type Snapshot struct {
	Engines []engines.Engine
	Rules   []Rule
	Scores  []capabilities.Score
	Policy  Policy
}
