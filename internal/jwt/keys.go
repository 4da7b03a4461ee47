package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

// GenerateEd25519 genera un par de claves Ed25519.
func GenerateEd25519() (pub, priv []byte, err error) {
	p, s, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return p, s, nil
}

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"` // "OKP"
	Crv string `json:"crv"` // "Ed25519"
	Kid string `json:"kid"`
	Alg string `json:"alg"` // "EdDSA"
	Use string `json:"use"` // "sig"
	X   string `json:"x"`   // base64url(pub)
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// buildJWKS construye JWKS JSON (solo públicas) a partir de un slice de SigningKey.
func buildJWKS(keys []core.SigningKey) []byte {
	out := jwks{Keys: make([]jwk, 0, len(keys))}
	for _, k := range keys {
		if len(k.PublicKey) == 0 {
			continue
		}
		out.Keys = append(out.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.PublicKey),
		})
	}
	b, _ := json.Marshal(out)
	return b
}
