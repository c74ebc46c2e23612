package validation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/rules"
	"github.com/abekarar/openimis-claimslens/internal/settings"
	"github.com/abekarar/openimis-claimslens/internal/validation"
)

type mockRegistry struct {
	registry.System
	activePolicyFn func(ctx context.Context, insureeID uuid.UUID, on time.Time) (*registry.Policy, error)
	duplicatesFn   func(ctx context.Context, claim *registry.Claim) ([]uuid.UUID, error)
	coverageFn     func(ctx context.Context, productID uuid.UUID) (*registry.Coverage, error)
}

func (m *mockRegistry) Coverage(ctx context.Context, productID uuid.UUID) (*registry.Coverage, error) {
	return m.coverageFn(ctx, productID)
}

func (m *mockRegistry) ActivePolicy(ctx context.Context, insureeID uuid.UUID, on time.Time) (*registry.Policy, error) {
	return m.activePolicyFn(ctx, insureeID, on)
}

func (m *mockRegistry) Duplicates(ctx context.Context, claim *registry.Claim) ([]uuid.UUID, error) {
	return m.duplicatesFn(ctx, claim)
}

var testSettings = settings.Settings{
	PartialMatchThreshold: 0.5,
	NumericTolerance:      0.01,
	DateFormats:           []string{"2006-01-02"},
}

func testClaim() *registry.Claim {
	return &registry.Claim{
		ID:        uuid.New(),
		InsureeID: uuid.New(),
		DateFrom:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Fields:    map[string]any{"claimed": 34.0},
		Insuree: registry.Record{
			ID:     uuid.New(),
			Fields: map[string]any{"chf_id": "010000001", "last_name": "Doe", "phone": "0888"},
		},
		Facility: registry.Record{
			ID:     uuid.New(),
			Fields: map[string]any{"code": "HF01", "name": "Central"},
		},
		Items: []registry.Line{{Code: "I1", Quantity: 2, Price: 12}},
	}
}

func TestUpstream(t *testing.T) {
	claim := testClaim()
	data := map[string]any{
		"chf_id":         "010000001",
		"last_name":      "Smith",
		"date_from":      "2024-01-15",
		"facility_code":  "hf01",
		"facility_name":  "Central",
		"claimed_amount": "34.00",
		"items":          []any{map[string]any{"code": "I1", "quantity": 2.0, "price": 10.0}},
	}

	t.Run("unclaimed mismatches are warnings", func(t *testing.T) {
		ev := validation.Upstream(validation.Input{Data: data, Claim: claim, Settings: testSettings})

		assert.Equal(t, validation.TypeUpstream, ev.Type)
		assert.Len(t, ev.Comparisons, 8)
		assert.Equal(t, 2, ev.DiscrepancyCount)
		assert.Equal(t, validation.StatusPartialMatch, ev.Status)
		assert.Equal(t, "6/8 fields matched", ev.Summary)

		require.Len(t, ev.Findings, 2)
		assert.Equal(t, "item_I1_price", ev.Findings[0].Field)
		assert.Equal(t, "last_name", ev.Findings[1].Field)
		for _, f := range ev.Findings {
			assert.Equal(t, validation.FindingWarning, f.FindingType)
			assert.Nil(t, f.RuleID)
		}
	})

	t.Run("rule turns mismatch into proposal", func(t *testing.T) {
		rule := rules.Rule{
			ID:         uuid.New(),
			Code:       "NAME_001",
			RuleType:   rules.TypeRegistry,
			Severity:   rules.SeverityInfo,
			Definition: map[string]any{"fields": []any{"last_name"}, "action": "update_proposal"},
		}
		ev := validation.Upstream(validation.Input{Data: data, Claim: claim, Rules: []rules.Rule{rule}, Settings: testSettings})

		require.Len(t, ev.Findings, 2)
		f := ev.Findings[1]
		assert.Equal(t, validation.FindingUpdateProposal, f.FindingType)
		assert.Equal(t, "NAME_001", *f.RuleCode)
		assert.Equal(t, "insuree", f.Details["target_model"])
		assert.Equal(t, claim.Insuree.ID.String(), f.Details["target_uuid"])
		assert.Equal(t, "Smith", f.Details["proposed"])
		assert.Equal(t, "Doe", f.Details["current"])
	})

	t.Run("no comparable fields", func(t *testing.T) {
		ev := validation.Upstream(validation.Input{Data: map[string]any{}, Claim: &registry.Claim{}, Settings: testSettings})
		assert.Equal(t, validation.StatusError, ev.Status)
		assert.Zero(t, ev.MatchScore)
		assert.Equal(t, "no comparable fields", ev.Summary)
	})
}

func TestDownstream(t *testing.T) {
	claim := testClaim()
	dups := make([]uuid.UUID, 7)
	for i := range dups {
		dups[i] = uuid.New()
	}

	reg := &mockRegistry{
		activePolicyFn: func(context.Context, uuid.UUID, time.Time) (*registry.Policy, error) {
			return nil, nil
		},
		duplicatesFn: func(context.Context, *registry.Claim) ([]uuid.UUID, error) {
			return dups, nil
		},
	}

	in := validation.Input{
		Claim:    claim,
		Settings: testSettings,
		Data: map[string]any{
			"icd_code":      "A09",
			"services":      []any{map[string]any{"code": "S1"}, map[string]any{"code": "S9"}},
			"insuree_phone": "0999",
		},
		Rules: []rules.Rule{
			{ID: uuid.New(), Code: "CLIN_001", RuleType: rules.TypeClinical, Severity: rules.SeverityWarning,
				Definition: map[string]any{"allowed_icd_service_map": map[string]any{"A09": []any{"S1"}}}},
			{ID: uuid.New(), Code: "ELIG_001", RuleType: rules.TypeEligibility, Severity: rules.SeverityWarning,
				Definition: map[string]any{}},
			{ID: uuid.New(), Code: "FRAUD_001", RuleType: rules.TypeFraud, Severity: rules.SeverityWarning,
				Definition: map[string]any{}},
			{ID: uuid.New(), Code: "REG_001", RuleType: rules.TypeRegistry, Severity: rules.SeverityInfo,
				Definition: map[string]any{"insuree_fields": []any{"phone"}}},
		},
	}

	ev, err := validation.Downstream(context.Background(), reg, in)
	require.NoError(t, err)

	assert.Equal(t, validation.TypeDownstream, ev.Type)
	assert.Len(t, ev.Comparisons, 5)
	assert.True(t, ev.Comparisons["service_S1_clinical"].Match)
	assert.Equal(t, 4, ev.DiscrepancyCount)
	assert.Equal(t, validation.StatusMismatched, ev.Status)

	byCode := map[string]validation.Finding{}
	for _, f := range ev.Findings {
		byCode[*f.RuleCode] = f
	}
	require.Len(t, byCode, 4)

	assert.Equal(t, "service_S9", byCode["CLIN_001"].Field)
	assert.Equal(t, validation.FindingViolation, byCode["ELIG_001"].FindingType)
	assert.Equal(t, rules.SeverityError, byCode["ELIG_001"].Severity)
	assert.Len(t, byCode["FRAUD_001"].Details["duplicate_uuids"], 5)

	reg001 := byCode["REG_001"]
	assert.Equal(t, validation.FindingUpdateProposal, reg001.FindingType)
	assert.Equal(t, "phone", reg001.Field)
	assert.Equal(t, "0999", reg001.Details["proposed"])
	assert.Equal(t, "0888", reg001.Details["current"])
}

func TestDownstreamRegistryError(t *testing.T) {
	boom := errors.New("registry down")
	reg := &mockRegistry{
		activePolicyFn: func(context.Context, uuid.UUID, time.Time) (*registry.Policy, error) {
			return nil, boom
		},
	}
	in := validation.Input{
		Claim:    testClaim(),
		Settings: testSettings,
		Rules:    []rules.Rule{{Code: "ELIG_001", RuleType: rules.TypeEligibility}},
	}

	_, err := validation.Downstream(context.Background(), reg, in)
	assert.ErrorIs(t, err, boom)
}

func TestDownstreamProductCoverage(t *testing.T) {
	productID := uuid.New()
	claim := testClaim()
	claim.Items = []registry.Line{{Code: "I1"}, {Code: "I2"}}
	claim.Services = []registry.Line{{Code: "S1"}, {Code: "S2"}}

	eligible := []rules.Rule{{ID: uuid.New(), Code: "ELIG_001", RuleType: rules.TypeEligibility, Severity: rules.SeverityWarning}}

	t.Run("uncovered lines warn", func(t *testing.T) {
		var asked uuid.UUID
		reg := &mockRegistry{
			activePolicyFn: func(context.Context, uuid.UUID, time.Time) (*registry.Policy, error) {
				return &registry.Policy{ID: uuid.New(), ProductID: &productID, ProductCode: "BASIC"}, nil
			},
			coverageFn: func(_ context.Context, id uuid.UUID) (*registry.Coverage, error) {
				asked = id
				return &registry.Coverage{ProductID: id, ProductCode: "BASIC", Items: []string{"I1"}, Services: []string{"S2"}}, nil
			},
		}

		ev, err := validation.Downstream(context.Background(), reg, validation.Input{Claim: claim, Settings: testSettings, Rules: eligible})
		require.NoError(t, err)
		assert.Equal(t, productID, asked)

		require.Len(t, ev.Findings, 2)
		item, svc := ev.Findings[0], ev.Findings[1]

		assert.Equal(t, "item_I2", item.Field)
		assert.Equal(t, validation.FindingWarning, item.FindingType)
		assert.Equal(t, rules.SeverityWarning, item.Severity)
		assert.Equal(t, map[string]any{"item_code": "I2", "product_code": "BASIC"}, item.Details)

		assert.Equal(t, "service_S1", svc.Field)
		assert.Equal(t, map[string]any{"service_code": "S1", "product_code": "BASIC"}, svc.Details)

		assert.True(t, ev.Comparisons["item_I1_coverage"].Match)
		assert.False(t, ev.Comparisons["service_S1_coverage"].Match)
	})

	t.Run("policy without product skips coverage", func(t *testing.T) {
		reg := &mockRegistry{
			activePolicyFn: func(context.Context, uuid.UUID, time.Time) (*registry.Policy, error) {
				return &registry.Policy{ID: uuid.New()}, nil
			},
		}

		ev, err := validation.Downstream(context.Background(), reg, validation.Input{Claim: claim, Settings: testSettings, Rules: eligible})
		require.NoError(t, err)
		assert.Empty(t, ev.Findings)
		assert.True(t, ev.Comparisons["policy"].Match)
	})

	t.Run("coverage lookup failure aborts the pass", func(t *testing.T) {
		boom := errors.New("registry down")
		reg := &mockRegistry{
			activePolicyFn: func(context.Context, uuid.UUID, time.Time) (*registry.Policy, error) {
				return &registry.Policy{ID: uuid.New(), ProductID: &productID}, nil
			},
			coverageFn: func(context.Context, uuid.UUID) (*registry.Coverage, error) {
				return nil, boom
			},
		}

		_, err := validation.Downstream(context.Background(), reg, validation.Input{Claim: claim, Settings: testSettings, Rules: eligible})
		assert.ErrorIs(t, err, boom)
	})
}

func TestDownstreamWithoutRules(t *testing.T) {
	ev, err := validation.Downstream(context.Background(), &mockRegistry{}, validation.Input{Claim: testClaim(), Settings: testSettings})
	require.NoError(t, err)
	assert.Equal(t, validation.StatusError, ev.Status)
	assert.Empty(t, ev.Findings)
}
