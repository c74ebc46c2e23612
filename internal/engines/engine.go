// Package engines manages OCR/LLM backend definitions. ClaimLens never
// calls an engine itself; it stores their configuration, seals their API
// keys, and hands both to the extraction pipeline.
package engines

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Adapter names the wire protocol an engine speaks.
type Adapter string

const (
	AdapterOpenAICompatible Adapter = "openai_compatible"
	AdapterMistral          Adapter = "mistral"
	AdapterDeepSeek         Adapter = "deepseek"
)

var adapters = []Adapter{AdapterOpenAICompatible, AdapterMistral, AdapterDeepSeek}

// Deployment describes where an engine runs.
type Deployment string

const (
	DeploymentCloud      Deployment = "cloud"
	DeploymentSelfHosted Deployment = "self_hosted"
)

// Engine is an OCR/LLM backend definition.
type Engine struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Adapter        Adapter    `json:"adapter"`
	EndpointURL    string     `json:"endpoint_url"`
	ModelName      string     `json:"model_name"`
	Deployment     Deployment `json:"deployment_mode"`
	IsPrimary      bool       `json:"is_primary"`
	IsFallback     bool       `json:"is_fallback"`
	IsActive       bool       `json:"is_active"`
	MaxTokens      int        `json:"max_tokens"`
	Temperature    float64    `json:"temperature"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	HasAPIKey      bool       `json:"has_api_key"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Credentials is the decrypted secret material for an engine.
type Credentials struct {
	EngineID    uuid.UUID `json:"engine_id"`
	EndpointURL string    `json:"endpoint_url"`
	APIKey      string    `json:"api_key"`
}

// Command carries the fields of a create or update. On update a nil APIKey
// keeps the stored key and an empty one clears it.
type Command struct {
	Name           string     `json:"name"`
	Adapter        Adapter    `json:"adapter"`
	EndpointURL    string     `json:"endpoint_url"`
	ModelName      string     `json:"model_name"`
	Deployment     Deployment `json:"deployment_mode"`
	IsPrimary      bool       `json:"is_primary"`
	IsFallback     bool       `json:"is_fallback"`
	IsActive       *bool      `json:"is_active"`
	MaxTokens      int        `json:"max_tokens"`
	Temperature    *float64   `json:"temperature"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	APIKey         *string    `json:"api_key"`
}

// Validate checks the command and fills defaults.
func (c *Command) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return core.Invalid("name", "is required")
	}
	if !slices.Contains(adapters, c.Adapter) {
		return core.Invalid("adapter", "must be one of %v", adapters)
	}
	if c.Deployment == "" {
		c.Deployment = DeploymentCloud
	}
	if c.Deployment != DeploymentCloud && c.Deployment != DeploymentSelfHosted {
		return core.Invalid("deployment_mode", "must be cloud or self_hosted")
	}
	if strings.TrimSpace(c.EndpointURL) == "" {
		return core.Invalid("endpoint_url", "is required")
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.MaxTokens < 0 {
		return core.Invalid("max_tokens", "must be positive")
	}
	if c.Temperature == nil {
		t := 0.1
		c.Temperature = &t
	}
	if *c.Temperature < 0 || *c.Temperature > 2 {
		return core.Invalid("temperature", "must be between 0 and 2")
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 120
	}
	if c.TimeoutSeconds < 0 {
		return core.Invalid("timeout_seconds", "must be positive")
	}
	return nil
}

func (c *Command) active() bool {
	return c.IsActive == nil || *c.IsActive
}
