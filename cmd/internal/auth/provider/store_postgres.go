package provider

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

	"keel/cmd/identity"
)

// PostgresCredentialStore implements CredentialStore over PostgreSQL.
// The pgx pool is owned by the caller; this store must not close it.
type PostgresCredentialStore struct {
	pool   *pgxpool.Pool
	schema string
}

var credIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresCredentialStore constructs a PostgresCredentialStore. The schema
// defaults to "keel" and must be a legal PostgreSQL identifier.
func NewPostgresCredentialStore(pool *pgxpool.Pool, schema string) (*PostgresCredentialStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("provider: nil pool")
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "keel"
	}
	if !credIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("provider: invalid schema identifier")
	}
	return &PostgresCredentialStore{pool: pool, schema: schema}, nil
}

// Create persists a new credential record.
func (s *PostgresCredentialStore) Create(ctx context.Context, c Credential) error {
	const op = "provider.CreateCredential"

	emailNorm := identity.NormalizeEmail(c.Account.Email)
	if emailNorm == "" || strings.TrimSpace(c.Account.ID) == "" {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing id or email"}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	accounts := pgx.Identifier{s.schema, "accounts"}.Sanitize()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (id, email, email_norm, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.Account.ID,
		c.Account.Email,
		emailNorm,
		c.PasswordHash,
		c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return identity.OpError{Op: op, Kind: identity.ErrCreation, Msg: "duplicate email"}
		}
		return identity.OpError{Op: op, Kind: identity.ErrTransport, Msg: err.Error()}
	}
	return nil
}

// FetchByEmail loads a credential by normalized email.
func (s *PostgresCredentialStore) FetchByEmail(ctx context.Context, emailNorm string) (Credential, error) {
	const op = "provider.FetchCredential"

	accounts := pgx.Identifier{s.schema, "accounts"}.Sanitize()

	var c Credential
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at
		   FROM `+accounts+`
		  WHERE email_norm = $1`,
		emailNorm,
	).Scan(&c.Account.ID, &c.Account.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, identity.OpError{Op: op, Kind: identity.ErrNotFound, Msg: "unknown email"}
		}
		return Credential{}, identity.OpError{Op: op, Kind: identity.ErrTransport, Msg: err.Error()}
	}
	return c, nil
}
