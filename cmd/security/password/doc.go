// Package password provides password hashing, verification and generation
// for Keel's local session provider.
//
// It implements Argon2id hashing using a PHC-like encoded string format and
// includes:
//   - Configurable Argon2id parameters (via environment variables)
//   - Password policy validation
//   - Strict hash decoding and verification with anti-DoS bounds
//   - Random password generation for operator-created accounts
//
// Hash strings are treated as untrusted input during Verify and validated
// accordingly; verification refuses hashes whose parameters exceed reasonable
// bounds.
package password
