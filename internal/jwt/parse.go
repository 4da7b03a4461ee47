package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidIssuer = errors.New("invalid_issuer")

// ParseEdDSA valida firma EdDSA contra el keystore (por kid, o la activa si
// el header no trae kid), chequea iss cuando expectedIss no es vacío y deja
// que el parser valide exp/nbf con 30s de tolerancia.
//
// La firma del refresh token se verifica acá, en el borde HTTP. El generador
// recibe claims ya validadas y no re-deriva confianza.
func ParseEdDSA(token string, ks *Keystore, expectedIss string) (map[string]any, error) {
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(30 * time.Second),
	}
	if expectedIss != "" {
		opts = append(opts, jwtv5.WithIssuer(expectedIss))
	}

	tok, err := jwtv5.Parse(token, func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" {
			return ks.PublicKeyByKID(kid)
		}
		_, _, pub, err := ks.Active()
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(pub), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenInvalidIssuer) {
			return nil, ErrInvalidIssuer
		}
		return nil, errors.New("invalid_jwt")
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("claims_type")
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
