package prompts

import (
	"encoding/json"
	"slices"
)

// Type is the pipeline stage a prompt serves.
type Type string

const (
	TypeClassification Type = "classification"
	TypeExtraction     Type = "extraction"
)

var types = []Type{
	TypeClassification,
	TypeExtraction,
}

// Types returns the valid prompt types.
func Types() []Type {
	return types
}

func (t Type) Valid() bool {
	return slices.Contains(types, t)
}

// UnmarshalJSON validates that the decoded string is a known prompt type.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Type(raw)
	if !v.Valid() {
		return ErrInvalidType
	}
	*t = v
	return nil
}

// ParseType validates s as a prompt type.
func ParseType(s string) (Type, error) {
	v := Type(s)
	if !v.Valid() {
		return "", ErrInvalidType
	}
	return v, nil
}
