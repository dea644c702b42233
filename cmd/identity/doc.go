// Package identity implements Keel's identity foundation.
//
// It defines the application-facing Identity record, the profile persistence
// boundary (Postgres + in-memory), and the Resolver that maps an authenticated
// account id to its profile, creating a default one on first sight.
//
// This package is intentionally dependency-light; session lifecycle and state
// synchronization live in cmd/internal/auth.
package identity
