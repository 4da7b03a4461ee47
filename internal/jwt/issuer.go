package jwt

import (
	"crypto/ed25519"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer firma tokens usando la clave activa del keystore.
// El keystore es dependencia explícita: nada de keypairs globales.
type Issuer struct {
	Iss        string        // "iss"
	Keys       *Keystore     // keystore con rotación
	AccessTTL  time.Duration // TTL de Access/ID (ej: 20m)
	RefreshTTL time.Duration // TTL de Refresh (ej: 720h)
}

func NewIssuer(iss string, ks *Keystore) *Issuer {
	return &Issuer{
		Iss:        iss,
		Keys:       ks,
		AccessTTL:  20 * time.Minute,
		RefreshTTL: 720 * time.Hour,
	}
}

// ActiveKID devuelve el KID activo actual.
func (i *Issuer) ActiveKID() (string, error) {
	kid, _, _, err := i.Keys.Active()
	return kid, err
}

// Keyfunc devuelve un jwt.Keyfunc que elige la pubkey por 'kid' del token (active/retiring).
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			return i.Keys.PublicKeyByKID(kid)
		}
		// Fallback: usar la activa
		_, _, pub, err := i.Keys.Active()
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(pub), nil
	}
}

// SignRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve el JWT firmado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, string, error) {
	kid, priv, _, err := i.Keys.Active()
	if err != nil {
		return "", "", err
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = kid
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(priv)
	if err != nil {
		return "", "", err
	}
	return signed, kid, nil
}

func (i *Issuer) baseClaims(sub string, aud []string, ttl time.Duration) (jwtv5.MapClaims, time.Time) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	return jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": sub,
		"aud": aud,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}, exp
}

// SignIDToken emite el ID Token OIDC.
// aud = scopes pedidos (convención del server); azp = client_id.
// El nonce, si vino en el authorize, se propaga tal cual.
// Los claims de la cuenta federada vinculada solo aparecen si existe vínculo.
func (i *Issuer) SignIDToken(user *core.User, clientID string, scopes []string, nonce string, linked *core.LinkedGoogleAccount) (string, time.Time, error) {
	claims, exp := i.baseClaims(user.ID, scopes, i.AccessTTL)
	claims["azp"] = clientID
	claims["auth_time"] = time.Now().UTC().Unix()
	claims["context"] = map[string]any{
		"user": map[string]any{"name": user.Username},
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	if linked != nil {
		claims["linked_google_account"] = linked.Email
		if linked.ExpiresAt != nil {
			claims["linked_google_account_exp"] = linked.ExpiresAt.Unix()
		}
	}
	signed, _, err := i.SignRaw(claims)
	return signed, exp, err
}

// SignAccessToken emite el Access Token.
func (i *Issuer) SignAccessToken(user *core.User, clientID string, scopes []string, linkedEmail string) (string, time.Time, error) {
	claims, exp := i.baseClaims(user.ID, scopes, i.AccessTTL)
	claims["azp"] = clientID
	claims["scope"] = scopes
	claims["context"] = map[string]any{
		"user": map[string]any{"name": user.Username},
	}
	if linkedEmail != "" {
		claims["linked_google_account"] = linkedEmail
	}
	signed, _, err := i.SignRaw(claims)
	return signed, exp, err
}

// SignRefreshToken emite un Refresh Token con jti propio.
// El jti se registra aparte (store) para revocación sin decodificar el token.
func (i *Issuer) SignRefreshToken(user *core.User, clientID string, scopes []string) (token, jti string, exp time.Time, err error) {
	jti = uuid.NewString()
	claims, exp := i.baseClaims(user.ID, scopes, i.RefreshTTL)
	claims["azp"] = clientID
	claims["jti"] = jti
	signed, _, err := i.SignRaw(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, exp, nil
}

// JWKSJSON expone el JWKS actual (active+retiring).
func (i *Issuer) JWKSJSON() []byte {
	j, _ := i.Keys.JWKSJSON()
	return j
}
