package validation_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/documents"
	"github.com/abekarar/openimis-claimslens/internal/extractions"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/rules"
	"github.com/abekarar/openimis-claimslens/internal/testdb"
	"github.com/abekarar/openimis-claimslens/internal/validation"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

var errRegistryDown = errors.New("registry unavailable")

type fixedExtractions struct{ extractions.System }

func (fixedExtractions) FindByDocument(_ context.Context, id uuid.UUID) (*extractions.Result, error) {
	return &extractions.Result{
		DocumentID:     id,
		StructuredData: map[string]any{"claimed": 34.0},
	}, nil
}

// unreachableRegistry serves the claim but fails every policy lookup.
type unreachableRegistry struct{ registry.System }

func (unreachableRegistry) Claim(_ context.Context, id uuid.UUID) (*registry.Claim, error) {
	return &registry.Claim{
		ID:        id,
		InsureeID: uuid.New(),
		DateFrom:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Fields:    map[string]any{"claimed": 34.0},
	}, nil
}

func (unreachableRegistry) ActivePolicy(context.Context, uuid.UUID, time.Time) (*registry.Policy, error) {
	return nil, errRegistryDown
}

type eligibilityRules struct{ rules.System }

func (eligibilityRules) Active(context.Context) ([]rules.Rule, error) {
	return []rules.Rule{{
		ID:       uuid.New(),
		Code:     "eligibility",
		RuleType: rules.TypeEligibility,
		Severity: rules.SeverityError,
		IsActive: true,
	}}, nil
}

func countRows(t *testing.T, db *sql.DB, q string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(q, args...).Scan(&n))
	return n
}

func newIntegrationEngine(db *sql.DB, deps validation.Deps) validation.System {
	return validation.New(db, deps, testdb.Logger(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func TestRunFailedPassPersistsNothing(t *testing.T) {
	db := testdb.Open(t)

	docID := testdb.InsertDocument(t, db, string(documents.StatusCompleted))
	claimID := uuid.New()
	_, err := db.Exec(`UPDATE documents SET claim_id = $1 WHERE id = $2`, claimID, docID)
	require.NoError(t, err)

	engine := newIntegrationEngine(db, validation.Deps{
		Documents: &stubDocuments{doc: &documents.Document{
			ID:      docID,
			Status:  documents.StatusCompleted,
			ClaimID: &claimID,
		}},
		Extractions: fixedExtractions{},
		Registry:    unreachableRegistry{},
		Rules:       eligibilityRules{},
		Settings:    stubSettings{},
	})

	results, err := engine.Run(context.Background(), validation.RunCommand{DocumentID: docID})
	require.ErrorIs(t, err, errRegistryDown)
	assert.Nil(t, results)

	// The upstream pass succeeded but must not be stored alone.
	assert.Zero(t, countRows(t, db, `SELECT count(*) FROM validation_results WHERE document_id = $1`, docID))
}

func TestResolveFindingProposals(t *testing.T) {
	db := testdb.Open(t)
	engine := newIntegrationEngine(db, validation.Deps{})
	ctx := context.Background()

	proposalsFor := func(findingID uuid.UUID) int {
		return countRows(t, db, `SELECT count(*) FROM registry_proposals WHERE finding_id = $1`, findingID)
	}

	t.Run("accepted update proposal creates one proposal", func(t *testing.T) {
		docID := testdb.InsertDocument(t, db, string(documents.StatusCompleted))
		details := `{"target_model":"insuree","target_uuid":"` + uuid.NewString() + `","proposed_value":"+22990000000"}`
		_, findingID := testdb.InsertFinding(t, db, docID, "update_proposal", "phone", details)

		res, err := engine.ResolveFinding(ctx, findingID, validation.ResolveCommand{Status: validation.ResolutionAccepted})
		require.NoError(t, err)
		require.NotNil(t, res.Proposal)
		assert.Equal(t, findingID, res.Proposal.FindingID)
		assert.Equal(t, validation.ResolutionAccepted, res.Finding.ResolutionStatus)

		_, err = engine.ResolveFinding(ctx, findingID, validation.ResolveCommand{Status: validation.ResolutionAccepted})
		require.ErrorIs(t, err, core.ErrIllegalTransition)

		assert.Equal(t, 1, proposalsFor(findingID))
	})

	t.Run("rejected update proposal creates none", func(t *testing.T) {
		docID := testdb.InsertDocument(t, db, string(documents.StatusCompleted))
		details := `{"target_model":"insuree","target_uuid":"` + uuid.NewString() + `"}`
		_, findingID := testdb.InsertFinding(t, db, docID, "update_proposal", "phone", details)

		res, err := engine.ResolveFinding(ctx, findingID, validation.ResolveCommand{Status: validation.ResolutionRejected})
		require.NoError(t, err)
		assert.Nil(t, res.Proposal)
		assert.Zero(t, proposalsFor(findingID))
	})

	for _, findingType := range []string{"warning", "violation"} {
		t.Run("accepted "+findingType+" creates none", func(t *testing.T) {
			docID := testdb.InsertDocument(t, db, string(documents.StatusCompleted))
			_, findingID := testdb.InsertFinding(t, db, docID, findingType, "diagnosis", `{}`)

			res, err := engine.ResolveFinding(ctx, findingID, validation.ResolveCommand{Status: validation.ResolutionAccepted})
			require.NoError(t, err)
			assert.Nil(t, res.Proposal)
			assert.Zero(t, proposalsFor(findingID))
		})
	}
}
