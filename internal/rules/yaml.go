package rules

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Document is a rule import payload:
//
//	rules:
//	  - code: CLIN_002
//	    name: Malaria services
//	    rule_type: clinical
//	    severity: warning
//	    rule_definition:
//	      allowed_icd_service_map:
//	        B54: [M001, M002]
type Document struct {
	Rules []Command `yaml:"rules"`
}

// ParseYAML decodes and validates an import document. Unknown keys are
// rejected, as are duplicate codes within the document.
func ParseYAML(data []byte) ([]Command, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, core.Invalid("body", "decode rules: %v", err)
	}
	if len(doc.Rules) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]int, len(doc.Rules))
	for i := range doc.Rules {
		cmd := &doc.Rules[i]
		if err := cmd.Validate(); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if j, ok := seen[cmd.Code]; ok {
			return nil, core.Invalid("code", "%s repeats rules[%d] at rules[%d]", cmd.Code, j, i)
		}
		seen[cmd.Code] = i
	}

	return doc.Rules, nil
}
