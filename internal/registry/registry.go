// Package registry reads and writes the external claims registry: claims,
// insurees, health facilities, and policies. Every call is bounded by a
// timeout, and failures surface as core.ExternalCallFailure.
package registry

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Model names a registry record type that proposals may target.
type Model string

const (
	ModelInsuree        Model = "insuree"
	ModelHealthFacility Model = "health_facility"
)

// Valid reports whether m is a writable model.
func (m Model) Valid() bool {
	return m == ModelInsuree || m == ModelHealthFacility
}

// Record is an insuree or health facility with its attributes.
type Record struct {
	ID     uuid.UUID      `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Line is a claimed item or service.
type Line struct {
	Code     string  `json:"code"`
	Quantity float64 `json:"qty"`
	Price    float64 `json:"price"`
}

// Claim is a registry claim with its parties and lines resolved.
type Claim struct {
	ID         uuid.UUID      `json:"id"`
	InsureeID  uuid.UUID      `json:"insuree_id"`
	FacilityID uuid.UUID      `json:"health_facility_id"`
	DateFrom   time.Time      `json:"date_from"`
	Fields     map[string]any `json:"fields"`
	Insuree    Record         `json:"insuree"`
	Facility   Record         `json:"health_facility"`
	Items      []Line         `json:"items"`
	Services   []Line         `json:"services"`
}

// Policy is an insurance coverage period.
type Policy struct {
	ID         uuid.UUID `json:"id"`
	InsureeID  uuid.UUID `json:"insuree_id"`
	StartDate  time.Time `json:"start_date"`
	ExpiryDate time.Time `json:"expiry_date"`
	Status     string    `json:"status"`
	// ProductID is nil for a policy without a product; coverage is then
	// not checked.
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	ProductCode string     `json:"product_code,omitempty"`
}

// Coverage lists the item and service codes a product pays for.
type Coverage struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductCode string    `json:"product_code"`
	Items       []string  `json:"items"`
	Services    []string  `json:"services"`
}

func (c *Coverage) CoversItem(code string) bool {
	return slices.Contains(c.Items, code)
}

func (c *Coverage) CoversService(code string) bool {
	return slices.Contains(c.Services, code)
}
