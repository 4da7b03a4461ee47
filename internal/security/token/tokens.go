package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateOpaqueToken devuelve nBytes de entropía en base64url sin padding.
// Para authorization codes, states de login y client secrets.
func GenerateOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", fmt.Errorf("tokens: nBytes debe ser positivo, vino %d", nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tokens: rand: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL hashea s para usarlo como key de cache o DB.
// El valor crudo nunca se persiste.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
