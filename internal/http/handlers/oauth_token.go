package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/oauth2"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

// clientCredentials extrae las credenciales del request y el método usado.
// Prioridad: Basic > client_secret en el form > none.
func clientCredentials(r *http.Request) (clientID, secret, method string) {
	if id, sec, ok := r.BasicAuth(); ok {
		return strings.TrimSpace(id), sec, oauth2.AuthMethodBasic
	}
	clientID = strings.TrimSpace(r.PostForm.Get("client_id"))
	if sec := r.PostForm.Get("client_secret"); sec != "" {
		return clientID, sec, oauth2.AuthMethodPost
	}
	return clientID, "", oauth2.AuthMethodNone
}

// normalizeFormScope parte la forma histórica "a,b,c" (lista de un solo
// elemento separada por comas) además de la forma estándar por espacios.
func normalizeFormScope(raw string) []string {
	scopes := oauth2.NormalizeScope(raw)
	if len(scopes) == 1 && strings.Contains(scopes[0], ",") {
		return strings.Split(scopes[0], ",")
	}
	return scopes
}

func NewOAuthTokenHandler(c *app.Container) http.HandlerFunc {
	log := logger.Named("handlers.token")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST", 1000)
			return
		}
		// OAuth2: application/x-www-form-urlencoded
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64KB
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "form inválido", 2201)
			return
		}

		grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
		if grantType == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "grant_type es obligatorio", 2202)
			return
		}

		ctx := r.Context()
		clientID, secret, method := clientCredentials(r)
		if clientID == "" {
			httpx.WriteOAuthError(w, oauth2.InvalidClient("client_id es obligatorio"), 2203)
			return
		}

		cl, err := c.Registry.Lookup(ctx, clientID)
		if err != nil {
			if err == core.ErrNotFound {
				httpx.WriteOAuthError(w, oauth2.InvalidClient("client desconocido"), 2204)
				return
			}
			httpx.WriteOAuthError(w, oauth2.ServerError("client lookup failed"), 2205)
			return
		}

		// Método de auth permitido para el tipo de client, y secret si aplica.
		if !oauth2.CheckAuthMethod(cl, method) {
			httpx.RecordClientAuthFailure(method)
			httpx.WriteOAuthError(w, oauth2.InvalidClient("método de autenticación no permitido"), 2206)
			return
		}
		if method != oauth2.AuthMethodNone && !c.Registry.VerifySecret(cl, secret) {
			httpx.RecordClientAuthFailure(method)
			log.Warn("client secret mismatch", logger.ClientID(clientID))
			httpx.WriteOAuthError(w, oauth2.InvalidClient("credenciales inválidas"), 2207)
			return
		}

		if !oauth2.CheckGrantType(cl, grantType) {
			httpx.WriteOAuthError(w, oauth2.UnauthorizedClient("grant_type no habilitado para este client"), 2208)
			return
		}

		// Se valida exactamente la lista que después se acuña en los tokens.
		rawScope := strings.TrimSpace(r.PostForm.Get("scope"))
		scopes := normalizeFormScope(rawScope)
		if rawScope != "" && !oauth2.ValidateScopes(cl, scopes) {
			httpx.WriteOAuthError(w, oauth2.InvalidScope("scope no permitido para este client"), 2209)
			return
		}

		treq := &oauth2.TokenRequest{
			GrantType:           grantType,
			Scope:               scopes,
			Nonce:               strings.TrimSpace(r.PostForm.Get("nonce")),
			IncludeRefreshToken: true,
		}

		switch grantType {
		case oauth2.GrantAuthorizationCode:
			treq.Code = strings.TrimSpace(r.PostForm.Get("code"))
			if treq.Code == "" {
				httpx.WriteOAuthError(w, oauth2.InvalidRequest("code es obligatorio"), 2210)
				return
			}

		case oauth2.GrantRefreshToken:
			raw := strings.TrimSpace(r.PostForm.Get("refresh_token"))
			if raw == "" {
				httpx.WriteOAuthError(w, oauth2.InvalidRequest("refresh_token es obligatorio"), 2211)
				return
			}
			// La firma se verifica acá, en el borde. El generador confía en
			// los claims y solo chequea el jti contra el store.
			claims, err := jwtx.ParseEdDSA(raw, c.Issuer.Keys, c.Issuer.Iss)
			if err != nil {
				httpx.RecordTokenIssued(grantType, "error")
				httpx.WriteOAuthError(w, oauth2.InvalidGrant("refresh token inválido o expirado"), 2212)
				return
			}
			treq.RefreshToken = raw
			treq.RefreshClaims = claims
		}

		resp, err := c.Tokens.Generate(ctx, cl, treq)
		if err != nil {
			var oe *oauth2.OIDCError
			if grantType == oauth2.GrantAuthorizationCode &&
				errors.As(err, &oe) && oe.Code == "invalid_grant" {
				// code desconocido, vencido o ya canjeado
				httpx.RecordCodeConsumed("miss")
			}
			httpx.RecordTokenIssued(grantType, "error")
			httpx.WriteOAuthError(w, err, 2213)
			return
		}
		if grantType == oauth2.GrantAuthorizationCode {
			httpx.RecordCodeConsumed("ok")
		}
		httpx.RecordTokenIssued(grantType, "ok")

		// Evitar cache en respuestas con tokens
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
