package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/oauth2"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

func addQS(u, k, v string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + url.QueryEscape(k) + "=" + url.QueryEscape(v)
}

func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state, code, desc string) {
	// Evitar cache en errores de autorización también
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	loc := addQS(redirectURI, "error", code)
	if desc != "" {
		loc = addQS(loc, "error_description", desc)
	}
	if state != "" {
		loc = addQS(loc, "state", state)
	}
	http.Redirect(w, r, loc, http.StatusFound)
}

// bearerUser resuelve el usuario autenticado desde un access token Bearer.
func bearerUser(r *http.Request, c *app.Container) *core.User {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return nil
	}
	raw := strings.TrimSpace(ah[len("Bearer "):])
	claims, err := jwtx.ParseEdDSA(raw, c.Issuer.Keys, c.Issuer.Iss)
	if err != nil {
		return nil
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	u, err := c.Store.GetUserByID(r.Context(), sub)
	if err != nil {
		return nil
	}
	return u
}

// consentInfo es lo que ve el usuario antes de aprobar el acceso.
type consentInfo struct {
	ClientName  string   `json:"client_name"`
	Description string   `json:"description,omitempty"`
	Scopes      []string `json:"scopes"`
	ConsentURL  string   `json:"consent_url"`
}

func NewOAuthAuthorizeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET", 1000)
			return
		}
		w.Header().Add("Vary", "Authorization")

		q := r.URL.Query()
		responseType := strings.TrimSpace(q.Get("response_type"))
		clientID := strings.TrimSpace(q.Get("client_id"))
		redirectURI := strings.TrimSpace(q.Get("redirect_uri"))
		scope := strings.TrimSpace(q.Get("scope"))
		state := strings.TrimSpace(q.Get("state"))
		nonce := strings.TrimSpace(q.Get("nonce"))

		if clientID == "" || scope == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "faltan parámetros obligatorios", 2101)
			return
		}
		// Solo "code". Nada más se acepta acá.
		if !oauth2.CheckResponseType(responseType) {
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_response_type", "response_type debe ser code", 2102)
			return
		}

		ctx := r.Context()
		cl, err := c.Registry.Lookup(ctx, clientID)
		if err != nil {
			status := http.StatusInternalServerError
			if err == core.ErrNotFound {
				status = http.StatusUnauthorized
			}
			httpx.WriteError(w, status, "invalid_client", "client inválido", 2103)
			return
		}

		// redirect_uri: exacto contra las registradas; ausente => la primera.
		if redirectURI == "" {
			redirectURI, err = oauth2.DefaultRedirectURI(cl)
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "client sin redirect URIs", 2104)
				return
			}
		} else {
			okRedirect := false
			for _, ru := range cl.RedirectURIs {
				if ru == redirectURI {
					okRedirect = true
					break
				}
			}
			if !okRedirect {
				// Nunca redirigir a una URI no registrada
				httpx.WriteError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uri no coincide con el client", 2105)
				return
			}
		}

		scopes := oauth2.NormalizeScope(scope)
		if !oauth2.CheckRequestedScopes(cl, scopes) {
			redirectError(w, r, redirectURI, state, "invalid_scope", "scope no permitido para este client")
			return
		}

		user := bearerUser(r, c)
		if user == nil {
			redirectError(w, r, redirectURI, state, "login_required", "requiere login")
			return
		}

		// Consent: clients sin auto_approve necesitan confirmación explícita.
		if !cl.AutoApprove && q.Get("confirm") != "yes" {
			confirmQ := r.URL.Query()
			confirmQ.Set("confirm", "yes")
			httpx.WriteJSON(w, http.StatusOK, consentInfo{
				ClientName:  cl.Name,
				Description: cl.Description,
				Scopes:      scopes,
				ConsentURL:  r.URL.Path + "?" + confirmQ.Encode(),
			})
			return
		}

		code, err := c.Codes.Record(ctx, user.ID, scopes, nonce)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo generar code", 2106)
			return
		}

		// Redirigir con code (+ state) y evitar cache
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		loc := addQS(redirectURI, "code", code)
		if state != "" {
			loc = addQS(loc, "state", state)
		}
		http.Redirect(w, r, loc, http.StatusFound)
	}
}
