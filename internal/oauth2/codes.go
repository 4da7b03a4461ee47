package oauth2

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/cache"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
)

// AuthorizationCode es el artefacto efímero de un solo uso que liga
// usuario, scopes pedidos y nonce.
type AuthorizationCode struct {
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"` // space-joined; se normaliza al leer
	Nonce     string    `json:"nonce,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Scopes devuelve el scope normalizado a lista.
func (c *AuthorizationCode) Scopes() []string { return strings.Fields(c.Scope) }

// CodeStore persiste authorization codes en cache con TTL.
// Consume es atómico (GetDel): ante redenciones concurrentes del mismo
// code, a lo sumo una gana.
type CodeStore struct {
	cache cache.Client
	ttl   time.Duration
}

func NewCodeStore(c cache.Client, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CodeStore{cache: c, ttl: ttl}
}

func codeKey(code string) string {
	// No guardamos el code en claro como key
	return "oidc:code:" + tokens.SHA256Base64URL(code)
}

// Record crea un code nuevo al final del paso de consentimiento.
func (s *CodeStore) Record(ctx context.Context, userID string, scopes []string, nonce string) (string, error) {
	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	ac := AuthorizationCode{
		UserID:    userID,
		Scope:     strings.Join(scopes, " "),
		Nonce:     nonce,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	b, err := json.Marshal(ac)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, codeKey(code), string(b), s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Consume resuelve y quema el code en una sola operación.
// Un code ya consumido, desconocido o vencido devuelve invalid_grant.
func (s *CodeStore) Consume(ctx context.Context, code string) (*AuthorizationCode, error) {
	if code == "" {
		return nil, InvalidGrant("authorization code missing")
	}
	data, err := s.cache.GetDel(ctx, codeKey(code))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, InvalidGrant("authorization code invalid or already used")
		}
		return nil, ServerError("code store unavailable")
	}
	var ac AuthorizationCode
	if err := json.Unmarshal([]byte(data), &ac); err != nil {
		return nil, InvalidGrant("authorization code corrupt")
	}
	if time.Now().After(ac.ExpiresAt) {
		return nil, InvalidGrant("authorization code expired")
	}
	return &ac, nil
}
