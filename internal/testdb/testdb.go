// Package testdb opens a migrated PostgreSQL database for integration
// tests. Tests using it are skipped unless CLAIMLENS_TEST_DSN holds a
// postgres:// URL.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/abekarar/openimis-claimslens/internal/dispatch"
	"github.com/abekarar/openimis-claimslens/pkg/lock"
)

// EnvDSN names the variable holding the integration database URL.
const EnvDSN = "CLAIMLENS_TEST_DSN"

// Open migrates the database named by CLAIMLENS_TEST_DSN to the latest
// version and returns a pool closed at test cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}

	if err := migrateUp(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return db
}

func migrateUp(dsn string) error {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return errors.New("locate migrations")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "cmd", "migrate", "migrations")

	m, err := migrate.New("file://"+filepath.ToSlash(dir), dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Logger discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Redis starts a miniredis server for the test and returns a client to it.
func Redis(t testing.TB) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// Locker returns a RedisLocker backed by client.
func Locker(client *redis.Client) lock.Locker {
	return lock.NewRedisLocker(client)
}

// Dispatcher returns a dispatcher backed by client.
func Dispatcher(client *redis.Client) dispatch.System {
	return dispatch.New(client, dispatch.Queues{
		Preprocessing: "claimlens.test.preprocessing",
		Validation:    "claimlens.test.validation",
	}, Logger())
}

// Unique returns a value prefixed with name that no other test run
// has used, for columns under unique constraints.
func Unique(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}

// InsertDocument inserts a document row in status and returns its id.
func InsertDocument(t testing.TB, db *sql.DB, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO documents (id, filename, content_type, size_bytes, storage_key, status)
		VALUES ($1, 'claim.pdf', 'application/pdf', 128, $2, $3)`,
		id, "documents/"+id.String()+"/claim.pdf", status,
	)
	if err != nil {
		t.Fatalf("insert document: %v", err)
	}
	return id
}

// InsertEngine inserts an engine configuration and returns its id.
func InsertEngine(t testing.TB, db *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO engine_configs (id, name, adapter, endpoint_url, model_name)
		VALUES ($1, $2, 'openai_compatible', 'http://engine.local/v1', 'test-model')`,
		id, Unique("engine"),
	)
	if err != nil {
		t.Fatalf("insert engine: %v", err)
	}
	return id
}

// InsertDocumentType inserts a document type and returns its id.
func InsertDocumentType(t testing.TB, db *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	code := Unique("type")
	_, err := db.Exec(
		`INSERT INTO document_types (id, code, name) VALUES ($1, $2, $2)`,
		id, code,
	)
	if err != nil {
		t.Fatalf("insert document type: %v", err)
	}
	return id
}

// InsertFinding inserts a downstream validation result for documentID
// holding one pending finding, returning the result and finding ids.
func InsertFinding(t testing.TB, db *sql.DB, documentID uuid.UUID, findingType, field, details string) (uuid.UUID, uuid.UUID) {
	t.Helper()
	resultID, findingID := uuid.New(), uuid.New()

	if _, err := db.Exec(
		`INSERT INTO validation_results (id, document_id, validation_type, overall_status)
		VALUES ($1, $2, 'downstream', 'mismatched')`,
		resultID, documentID,
	); err != nil {
		t.Fatalf("insert validation result: %v", err)
	}

	severity := "warning"
	if findingType == "violation" {
		severity = "error"
	}
	if _, err := db.Exec(
		`INSERT INTO validation_findings (id, validation_result_id, finding_type, severity, field, description, details)
		VALUES ($1, $2, $3, $4, $5, 'fixture', $6::jsonb)`,
		findingID, resultID, findingType, severity, field, details,
	); err != nil {
		t.Fatalf("insert validation finding: %v", err)
	}
	return resultID, findingID
}
