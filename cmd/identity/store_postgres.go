package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresProfileStore implements ProfileStore over PostgreSQL.
//
// Ownership model:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted to avoid SQL injection via
//     identifiers.
//   - Errors are mapped to the package's sentinel kinds: pgx.ErrNoRows becomes
//     ErrNotFound, unique violations become ErrCreation, everything else is an
//     ErrTransport kind wrapping the driver error.
type PostgresProfileStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresProfileStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the profile store (default
// "keel"). The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresProfileStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresProfileStore constructs a PostgresProfileStore.
func NewPostgresProfileStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresProfileStore, error) {
	st := &PostgresProfileStore{
		pool:   pool,
		schema: "keel",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// Close closes the store. The pool is owned by the caller, so this is a noop.
func (s *PostgresProfileStore) Close() error { return nil }

// FetchByID loads a profile by account id.
func (s *PostgresProfileStore) FetchByID(ctx context.Context, id string) (Profile, error) {
	const op = "identity.FetchByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty profile id"}
	}

	profiles := pgIdent(s.schema, "profiles")

	var p Profile
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, username, team_id, created_at
		   FROM `+profiles+`
		  WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.Name, &role, &p.Username, &p.TeamID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, NotFoundError{Op: op, ID: id}
		}
		return Profile{}, OpError{Op: op, Kind: ErrTransport, Msg: err.Error()}
	}

	p.Role = Role(role)
	return p, nil
}

// Insert persists a new profile and returns the stored record.
func (s *PostgresProfileStore) Insert(ctx context.Context, p Profile) (Profile, error) {
	const op = "identity.Insert"

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "empty profile id"}
	}
	if !p.Role.Valid() {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown role"}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	profiles := pgIdent(s.schema, "profiles")

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+profiles+` (
		     id, email, email_norm, name, role, username, team_id, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID,
		p.Email,
		NormalizeEmail(p.Email),
		p.Name,
		string(p.Role),
		p.Username,
		p.TeamID,
		p.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Profile{}, OpError{Op: op, Kind: ErrCreation, Msg: "duplicate " + field}
		}
		return Profile{}, OpError{Op: op, Kind: ErrTransport, Msg: err.Error()}
	}
	return p, nil
}

// ListAll returns every profile ordered by creation time descending.
func (s *PostgresProfileStore) ListAll(ctx context.Context) ([]Profile, error) {
	const op = "identity.ListAll"

	profiles := pgIdent(s.schema, "profiles")

	rows, err := s.pool.Query(ctx,
		`SELECT id, email, name, role, username, team_id, created_at
		   FROM `+profiles+`
		  ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, OpError{Op: op, Kind: ErrTransport, Msg: err.Error()}
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		var role string
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &role, &p.Username, &p.TeamID, &p.CreatedAt); err != nil {
			return nil, OpError{Op: op, Kind: ErrTransport, Msg: err.Error()}
		}
		p.Role = Role(role)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, OpError{Op: op, Kind: ErrTransport, Msg: err.Error()}
	}
	return out, nil
}

// ---- helpers ----

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to heuristics.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_profiles_email_norm" || strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "pkey") || strings.Contains(c, "id"):
		return "id", true
	default:
		return "unique", true
	}
}
