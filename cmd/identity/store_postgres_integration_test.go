package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require KEEL_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresProfileStore_InsertAndFetch(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyProfileSchema(t, pool, schema)

	s := mustNewProfileStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	id := mustNewTestID(t)
	username := "dana"
	in := Profile{
		ID:       id,
		Email:    "dana@example.com",
		Name:     "Dana",
		Role:     RoleMember,
		Username: &username,
	}

	if _, err := s.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.FetchByID(ctx, id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Email != in.Email || got.Role != RoleMember {
		t.Fatalf("fetched mismatch: %+v", got)
	}
	if got.Username == nil || *got.Username != username {
		t.Fatalf("expected username round-trip, got %v", got.Username)
	}
	if got.TeamID != nil {
		t.Fatalf("expected nil team id, got %v", got.TeamID)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestPostgresProfileStore_FetchMissingIsNotFound(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyProfileSchema(t, pool, schema)

	s := mustNewProfileStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.FetchByID(ctx, mustNewTestID(t))
	if !IsNotFound(err) {
		t.Fatalf("expected not-found kind, got: %v", err)
	}
}

func TestPostgresProfileStore_DuplicateEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyProfileSchema(t, pool, schema)

	s := mustNewProfileStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := s.Insert(ctx, Profile{ID: mustNewTestID(t), Email: "Dup@Example.com", Name: "A", Role: RoleMember}); err != nil {
		t.Fatalf("insert 1: %v", err)
	}

	_, err := s.Insert(ctx, Profile{ID: mustNewTestID(t), Email: "dup@example.COM", Name: "B", Role: RoleMember})
	if err == nil {
		t.Fatalf("expected duplicate email to conflict")
	}
	if !IsCreation(err) {
		t.Fatalf("expected creation kind, got: %v", err)
	}
}

func TestPostgresProfileStore_ListAllNewestFirst(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplyProfileSchema(t, pool, schema)

	s := mustNewProfileStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	base := time.Now().UTC().Truncate(time.Second)
	var newest string
	for i := 0; i < 3; i++ {
		id := mustNewTestID(t)
		newest = id
		_, err := s.Insert(ctx, Profile{
			ID:        id,
			Email:     fmt.Sprintf("list-%d-%s@example.com", i, strings.ToLower(id[:8])),
			Name:      "u",
			Role:      RoleMember,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	out, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(out))
	}
	if out[0].ID != newest {
		t.Fatalf("expected newest profile first, got %s", out[0].ID)
	}
	for i := 1; i < len(out); i++ {
		if out[i].CreatedAt.After(out[i-1].CreatedAt) {
			t.Fatalf("ordering violated at index %d", i)
		}
	}
}

// ---- helpers ----

func mustNewProfileStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresProfileStore {
	t.Helper()
	s, err := NewPostgresProfileStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("KEEL_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: KEEL_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse KEEL_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (KEEL_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "keel_it_" + strings.ToLower(mustNewTestID(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgxIdent1(schema)); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgxIdent1(schema)+` CASCADE`)
}

func mustApplyProfileSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	profiles := pgIdent(schema, "profiles")

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  username TEXT NULL,
  team_id TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_profiles_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_profiles_role CHECK (role IN ('admin', 'manager', 'member')),
  CONSTRAINT uq_profiles_email_norm UNIQUE (email_norm)
);

CREATE INDEX IF NOT EXISTS idx_profiles_created_at ON %s (created_at DESC, id DESC);
`, profiles, profiles)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply profile schema: %v", err)
	}
}

func mustNewTestID(t *testing.T) string {
	t.Helper()

	id, err := NewID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	return id
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

func pgxIdent1(ident string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection in dynamic DDL.
	return pgx.Identifier{ident}.Sanitize()
}
