package password

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Generate returns a random password with nBytes of entropy, base64url
// encoded. If nBytes is too small to satisfy common policies, it defaults to
// 18 bytes (24 chars).
func Generate(nBytes int) (string, error) {
	if nBytes < 12 {
		nBytes = 18
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
