// Package rules manages the validation rules evaluated by the downstream
// validation pass.
package rules

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Type is the evaluator a rule is dispatched to.
type Type string

const (
	TypeEligibility Type = "eligibility"
	TypeClinical    Type = "clinical"
	TypeFraud       Type = "fraud"
	TypeRegistry    Type = "registry"
)

// Types returns every rule type.
func Types() []Type {
	return []Type{TypeEligibility, TypeClinical, TypeFraud, TypeRegistry}
}

// Valid reports whether t is a known rule type.
func (t Type) Valid() bool {
	return slices.Contains(Types(), t)
}

// Severity grades a finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityError
}

// Actions a generic rule definition can take on a mismatched field.
const (
	ActionViolation      = "violation"
	ActionUpdateProposal = "update_proposal"
)

// Rule is an operator-authored validation rule.
type Rule struct {
	ID         uuid.UUID      `json:"id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	RuleType   Type           `json:"rule_type"`
	Definition map[string]any `json:"rule_definition"`
	Severity   Severity       `json:"severity"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Command carries the fields of a create, update or import entry.
type Command struct {
	Code       string         `json:"code" yaml:"code"`
	Name       string         `json:"name" yaml:"name"`
	RuleType   Type           `json:"rule_type" yaml:"rule_type"`
	Definition map[string]any `json:"rule_definition" yaml:"rule_definition"`
	Severity   Severity       `json:"severity" yaml:"severity"`
	IsActive   *bool          `json:"is_active" yaml:"is_active"`
}

// Validate checks required fields and the definition shape of the rule
// type. Severity defaults to warning.
func (c *Command) Validate() error {
	c.Code = strings.TrimSpace(c.Code)
	c.Name = strings.TrimSpace(c.Name)

	if c.Code == "" {
		return core.Invalid("code", "is required")
	}
	if c.Name == "" {
		return core.Invalid("name", "is required")
	}
	if !c.RuleType.Valid() {
		return core.Invalid("rule_type", "must be one of %v", Types())
	}
	if c.Severity == "" {
		c.Severity = SeverityWarning
	}
	if !c.Severity.Valid() {
		return core.Invalid("severity", "must be info, warning or error")
	}
	if c.Definition == nil {
		c.Definition = map[string]any{}
	}

	r := Rule{RuleType: c.RuleType, Definition: c.Definition}
	if _, err := r.Generic(); err != nil {
		return core.Invalid("rule_definition", "%v", err)
	}
	switch c.RuleType {
	case TypeClinical:
		if _, err := r.Clinical(); err != nil {
			return core.Invalid("rule_definition", "%v", err)
		}
	case TypeRegistry:
		if _, err := r.Registry(); err != nil {
			return core.Invalid("rule_definition", "%v", err)
		}
	}
	return nil
}

func (c *Command) active() bool {
	return c.IsActive == nil || *c.IsActive
}

// ClinicalDefinition maps an ICD code to the service codes it allows.
type ClinicalDefinition struct {
	AllowedICDServiceMap map[string][]string `json:"allowed_icd_service_map"`
}

// RegistryDefinition names the registry fields compared against the
// extraction. InsureeFields defaults to phone and email.
type RegistryDefinition struct {
	InsureeFields  []string `json:"insuree_fields"`
	FacilityFields []string `json:"facility_fields"`
}

// GenericDefinition applies a rule to mismatches of the named fields.
// An empty Fields list makes the rule type-specific only.
type GenericDefinition struct {
	Fields []string `json:"fields"`
	Action string   `json:"action"`
}

// Clinical decodes the definition of a clinical rule.
func (r Rule) Clinical() (ClinicalDefinition, error) {
	return decode[ClinicalDefinition](r.Definition)
}

// Registry decodes the definition of a registry rule.
func (r Rule) Registry() (RegistryDefinition, error) {
	def, err := decode[RegistryDefinition](r.Definition)
	if err != nil {
		return def, err
	}
	if _, ok := r.Definition["insuree_fields"]; !ok {
		def.InsureeFields = []string{"phone", "email"}
	}
	return def, nil
}

// Generic decodes the field-targeted part of any definition. Action
// defaults to violation.
func (r Rule) Generic() (GenericDefinition, error) {
	def, err := decode[GenericDefinition](r.Definition)
	if err != nil {
		return def, err
	}
	switch def.Action {
	case "":
		def.Action = ActionViolation
	case ActionViolation, ActionUpdateProposal:
	default:
		return def, fmt.Errorf("action %q must be %s or %s", def.Action, ActionViolation, ActionUpdateProposal)
	}
	return def, nil
}

func decode[T any](definition map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(definition)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
