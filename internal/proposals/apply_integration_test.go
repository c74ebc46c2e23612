package proposals_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abekarar/openimis-claimslens/internal/proposals"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/testdb"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

func insertApproved(t *testing.T, db *sql.DB, targetID uuid.UUID) uuid.UUID {
	t.Helper()
	docID := testdb.InsertDocument(t, db, "completed")
	details := `{"target_model":"insuree","target_uuid":"` + targetID.String() + `"}`
	resultID, findingID := testdb.InsertFinding(t, db, docID, "update_proposal", "phone", details)

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO registry_proposals
			(id, document_id, validation_result_id, finding_id, target_model, target_uuid, field_name, proposed_value, status)
		VALUES ($1, $2, $3, $4, 'insuree', $5, 'phone', '"+22990000000"'::jsonb, 'approved')`,
		id, docID, resultID, findingID, targetID,
	)
	require.NoError(t, err)
	return id
}

func appliedAudits(t *testing.T, db *sql.DB, proposalID uuid.UUID) int {
	t.Helper()
	var n int
	err := db.QueryRow(
		`SELECT count(*) FROM audit_log
		WHERE details->>'action' = 'registry_update_applied' AND details->>'proposal_id' = $1`,
		proposalID.String(),
	).Scan(&n)
	require.NoError(t, err)
	return n
}

func newIntegrationSystem(t *testing.T) (*sql.DB, proposals.System) {
	t.Helper()
	db := testdb.Open(t)
	sys := proposals.New(
		db,
		registry.New(db, 5*time.Second, testdb.Logger()),
		testdb.Locker(testdb.Redis(t)),
		time.Minute,
		testdb.Logger(),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
	return db, sys
}

func TestApplyWritesRegistryField(t *testing.T) {
	db, sys := newIntegrationSystem(t)
	ctx := context.Background()

	insureeID := uuid.New()
	_, err := db.Exec(`INSERT INTO registry.insurees (id, fields) VALUES ($1, '{}'::jsonb)`, insureeID)
	require.NoError(t, err)

	id := insertApproved(t, db, insureeID)

	p, err := sys.Apply(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, proposals.StatusApplied, p.Status)
	assert.NotNil(t, p.AppliedAt)

	var phone string
	require.NoError(t, db.QueryRow(
		`SELECT fields->>'phone' FROM registry.insurees WHERE id = $1`, insureeID,
	).Scan(&phone))
	assert.Equal(t, "+22990000000", phone)
	assert.Equal(t, 1, appliedAudits(t, db, id))
}

func TestApplyFailedWriteLeavesProposalApproved(t *testing.T) {
	db, sys := newIntegrationSystem(t)
	ctx := context.Background()

	// No insuree row exists for the target.
	id := insertApproved(t, db, uuid.New())

	_, err := sys.Apply(ctx, id)
	require.ErrorIs(t, err, registry.ErrRecordNotFound)

	p, err := sys.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, proposals.StatusApproved, p.Status)
	assert.Nil(t, p.AppliedAt)
	assert.Zero(t, appliedAudits(t, db, id))
}
