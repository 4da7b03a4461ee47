package oauth2

import (
	"context"
	"errors"
	"time"

	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"go.uber.org/zap"
)

// Grant types soportados por el generador.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantImplicit          = "implicit"
)

// TokenRequest es un pedido de grant ya parseado por el borde HTTP.
// Scope viene normalizado a lista (la forma "a b c" se parte antes de entrar).
type TokenRequest struct {
	GrantType string
	Code      string
	Scope     []string
	Nonce     string

	// User es el principal ya autenticado (solo implicit).
	User *core.User

	// RefreshToken es el token crudo presentado en un refresh grant; si está,
	// se devuelve tal cual (no hay rotación). RefreshClaims son sus claims ya
	// verificadas por la capa de arriba: acá no se re-verifica firma.
	RefreshToken  string
	RefreshClaims map[string]any

	IncludeAccessToken  bool // implicit: access token opcional
	IncludeRefreshToken bool // code/refresh: refresh token opcional
}

// TokenResponse es el cuerpo exacto de la respuesta del token endpoint.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Generator es la máquina de estados de emisión:
// RequestReceived → PrincipalResolved → TokensMinted → ResponseReady,
// con Rejected terminal desde cualquier estado. Todo error aborta el grant
// completo; nunca sale un juego parcial de tokens.
type Generator struct {
	store  core.Repository
	codes  *CodeStore
	issuer *jwtx.Issuer
	log    *zap.Logger
}

func NewGenerator(store core.Repository, codes *CodeStore, issuer *jwtx.Issuer) *Generator {
	return &Generator{
		store:  store,
		codes:  codes,
		issuer: issuer,
		log:    logger.Named("oauth2.generator"),
	}
}

// Generate despacha por grant_type y arma la respuesta de tokens.
func (g *Generator) Generate(ctx context.Context, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case GrantAuthorizationCode, GrantRefreshToken:
		return g.tokenResponse(ctx, client, req)
	case GrantImplicit:
		return g.implicitResponse(ctx, client, req)
	default:
		g.log.Warn("grant no soportado",
			logger.GrantType(req.GrantType), logger.ClientID(client.ID))
		return nil, InvalidRequest("unsupported grant_type")
	}
}

// resolveUser vuelve a cargar el usuario fresco desde el store: nunca se
// confía en una instancia cacheada/desprendida del contexto transaccional.
func (g *Generator) resolveUser(ctx context.Context, userID string) (*core.User, error) {
	u, err := g.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, InvalidGrant("user not found")
		}
		return nil, ServerError("user lookup failed")
	}
	return u, nil
}

// ensureUserScope garantiza el scope "user" en la lista final.
// El server siempre afirma identidad básica, se haya pedido o no.
func ensureUserScope(scopes []string) []string {
	for _, s := range scopes {
		if s == "user" {
			return scopes
		}
	}
	return append(scopes, "user")
}

// linkedAccount busca la identidad federada del usuario. Ausencia no es error.
func (g *Generator) linkedAccount(ctx context.Context, userID string) (*core.LinkedGoogleAccount, error) {
	l, err := g.store.GetLinkedGoogleAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, ServerError("linked account lookup failed")
	}
	return l, nil
}

// tokenResponse cubre authorization_code y refresh_token.
func (g *Generator) tokenResponse(ctx context.Context, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	var (
		user   *core.User
		scopes = req.Scope
		nonce  = req.Nonce
	)

	switch req.GrantType {
	case GrantAuthorizationCode:
		ac, err := g.codes.Consume(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		user, err = g.resolveUser(ctx, ac.UserID)
		if err != nil {
			return nil, err
		}
		if len(scopes) == 0 {
			scopes = ac.Scopes()
		}
		if nonce == "" {
			nonce = ac.Nonce
		}

	case GrantRefreshToken:
		sub, _ := req.RefreshClaims["sub"].(string)
		if sub == "" {
			return nil, InvalidGrant("refresh token has no subject")
		}
		jti, _ := req.RefreshClaims["jti"].(string)
		if err := g.checkRefreshTokenID(ctx, jti); err != nil {
			return nil, err
		}
		var err error
		user, err = g.resolveUser(ctx, sub)
		if err != nil {
			return nil, err
		}
		if len(scopes) == 0 {
			scopes = audScopes(req.RefreshClaims)
		}
	}

	scopes = ensureUserScope(scopes)

	linked, err := g.linkedAccount(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	linkedEmail := ""
	if linked != nil {
		linkedEmail = linked.Email
	}

	idToken, _, err := g.issuer.SignIDToken(user, client.ID, scopes, nonce, linked)
	if err != nil {
		return nil, ServerError("could not sign id_token")
	}
	access, _, err := g.issuer.SignAccessToken(user, client.ID, scopes, linkedEmail)
	if err != nil {
		return nil, ServerError("could not sign access_token")
	}

	resp := &TokenResponse{
		TokenType:   "Bearer",
		IDToken:     idToken,
		AccessToken: access,
		ExpiresIn:   int64(g.issuer.AccessTTL.Seconds()),
	}

	if req.IncludeRefreshToken {
		if req.RefreshToken != "" {
			// Autorenovación: se devuelve el mismo refresh, sin rotar.
			resp.RefreshToken = req.RefreshToken
		} else {
			refresh, jti, exp, err := g.issuer.SignRefreshToken(user, client.ID, scopes)
			if err != nil {
				return nil, ServerError("could not sign refresh_token")
			}
			if err := g.store.CreateRefreshTokenID(ctx, jti, user.ID, exp); err != nil {
				g.log.Error("refresh jti persist failed",
					logger.JTI(jti), logger.UserID(user.ID), logger.Err(err))
				return nil, ServerError("could not persist refresh token id")
			}
			resp.RefreshToken = refresh
		}
	}
	return resp, nil
}

// implicitResponse: el principal viene autenticado del flujo interactivo.
// Nunca emite refresh token; access token solo si se pidió.
func (g *Generator) implicitResponse(ctx context.Context, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.User == nil {
		return nil, InvalidGrant("user not authenticated")
	}
	user, err := g.resolveUser(ctx, req.User.ID)
	if err != nil {
		return nil, err
	}

	scopes := ensureUserScope(req.Scope)

	linked, err := g.linkedAccount(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	idToken, _, err := g.issuer.SignIDToken(user, client.ID, scopes, req.Nonce, linked)
	if err != nil {
		return nil, ServerError("could not sign id_token")
	}

	resp := &TokenResponse{
		TokenType: "Bearer",
		IDToken:   idToken,
		ExpiresIn: int64(g.issuer.AccessTTL.Seconds()),
	}
	if req.IncludeAccessToken {
		linkedEmail := ""
		if linked != nil {
			linkedEmail = linked.Email
		}
		access, _, err := g.issuer.SignAccessToken(user, client.ID, scopes, linkedEmail)
		if err != nil {
			return nil, ServerError("could not sign access_token")
		}
		resp.AccessToken = access
	}
	return resp, nil
}

// checkRefreshTokenID valida el jti contra el registro del store:
// revocado, vencido o desconocido => invalid_grant.
func (g *Generator) checkRefreshTokenID(ctx context.Context, jti string) error {
	if jti == "" {
		return InvalidGrant("refresh token has no jti")
	}
	rec, err := g.store.GetRefreshTokenID(ctx, jti)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return InvalidGrant("refresh token revoked or unknown")
		}
		return ServerError("refresh token lookup failed")
	}
	if !time.Now().Before(rec.ExpiresAt) {
		return InvalidGrant("refresh token expired")
	}
	return nil
}

// audScopes extrae la lista de scopes del claim aud de un refresh token.
func audScopes(claims map[string]any) []string {
	switch v := claims["aud"].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
