package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	"github.com/dropDatabas3/gatejohn/internal/login"
	"github.com/dropDatabas3/gatejohn/internal/oauth/google"
	"github.com/dropDatabas3/gatejohn/internal/oauth2"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/google/uuid"
)

const loginStateTTL = 10 * time.Minute

// loginState viaja por cache entre /login/google y su callback.
type loginState struct {
	Redirect      string `json:"redirect,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	IncludeAccess bool   `json:"include_access,omitempty"`
}

func stateKey(state string) string {
	return "login:state:" + tokens.SHA256Base64URL(state)
}

// GoogleLoginConfig parametriza el flujo de login federado.
type GoogleLoginConfig struct {
	OIDC     *google.OIDC // nil en modo mock
	Mock     bool
	MockUser string
	BaseURL  string
}

// NewGoogleLoginHandler arranca el flujo. El redirect pedido se valida ANTES
// de emitir cualquier redirect: fuera del set permitido no se sale de acá.
func NewGoogleLoginHandler(c *app.Container, cfg GoogleLoginConfig) http.HandlerFunc {
	log := logger.Named("handlers.login")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET", 1000)
			return
		}
		ctx := r.Context()
		q := r.URL.Query()

		redirect := strings.TrimSpace(q.Get("redirect"))
		if redirect != "" {
			if err := c.Redirects.Validate(ctx, redirect); err != nil {
				httpx.RecordRedirectCheck("rejected")
				var ir *login.ErrInvalidRedirect
				if errors.As(err, &ir) {
					log.Warn("redirect rechazado", logger.Path(redirect))
					httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect no permitido", 2301)
					return
				}
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo validar redirect", 2302)
				return
			}
			httpx.RecordRedirectCheck("allowed")
		}

		state, err := tokens.GenerateOpaqueToken(24)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo generar state", 2303)
			return
		}
		st := loginState{
			Redirect:      redirect,
			ClientID:      strings.TrimSpace(q.Get("client_id")),
			Nonce:         strings.TrimSpace(q.Get("nonce")),
			IncludeAccess: q.Get("include_access_token") == "true",
		}
		b, _ := json.Marshal(st)
		if err := c.Cache.Set(ctx, stateKey(state), string(b), loginStateTTL); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo guardar state", 2304)
			return
		}

		w.Header().Set("Cache-Control", "no-store")

		if cfg.Mock {
			// Sin round-trip con Google: directo al callback con el state.
			loc := strings.TrimRight(cfg.BaseURL, "/") + "/login/google/callback?state=" + url.QueryEscape(state)
			http.Redirect(w, r, loc, http.StatusFound)
			return
		}

		authURL, err := cfg.OIDC.AuthURL(ctx, state, st.Nonce)
		if err != nil {
			httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "no se pudo armar auth URL", 2305)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// NewGoogleCallbackHandler cierra el flujo: canjea el code, vincula la cuenta
// y, si vino client_id, emite tokens por el camino implicit.
func NewGoogleCallbackHandler(c *app.Container, cfg GoogleLoginConfig) http.HandlerFunc {
	log := logger.Named("handlers.login")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET", 1000)
			return
		}
		ctx := r.Context()
		q := r.URL.Query()

		state := strings.TrimSpace(q.Get("state"))
		if state == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "state es obligatorio", 2310)
			return
		}
		raw, err := c.Cache.GetDel(ctx, stateKey(state))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "state inválido o expirado", 2311)
			return
		}
		var st loginState
		_ = json.Unmarshal([]byte(raw), &st)

		var email string
		if cfg.Mock {
			email = cfg.MockUser
		} else {
			code := strings.TrimSpace(q.Get("code"))
			if code == "" {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code es obligatorio", 2312)
				return
			}
			tr, err := cfg.OIDC.ExchangeCode(ctx, code)
			if err != nil {
				log.Warn("exchange falló", logger.Err(err))
				httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "exchange con Google falló", 2313)
				return
			}
			claims, err := cfg.OIDC.VerifyIDToken(ctx, tr.IDToken)
			if err != nil {
				httpx.WriteError(w, http.StatusBadGateway, "upstream_error", "id_token de Google inválido", 2314)
				return
			}
			if st.Nonce != "" && claims.Nonce != st.Nonce {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "nonce no coincide", 2315)
				return
			}
			email = claims.Email
		}

		user, err := upsertGoogleUser(r, c, email)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo resolver usuario", 2316)
			return
		}

		w.Header().Set("Cache-Control", "no-store")

		// Sin client: login puro, volvemos (o reportamos) sin tokens.
		if st.ClientID == "" {
			if st.Redirect != "" {
				http.Redirect(w, r, st.Redirect, http.StatusFound)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"username": user.Username,
				"linked":   email,
			})
			return
		}

		cl, err := c.Registry.Lookup(ctx, st.ClientID)
		if err != nil {
			httpx.WriteOAuthError(w, oauth2.InvalidClient("client desconocido"), 2317)
			return
		}
		scopes := cl.DefaultScopes
		if len(scopes) == 0 {
			scopes = cl.AllowedScopes
		}
		resp, err := c.Tokens.Generate(ctx, cl, &oauth2.TokenRequest{
			GrantType:          oauth2.GrantImplicit,
			Scope:              scopes,
			Nonce:              st.Nonce,
			User:               user,
			IncludeAccessToken: st.IncludeAccess,
		})
		if err != nil {
			httpx.RecordTokenIssued(oauth2.GrantImplicit, "error")
			httpx.WriteOAuthError(w, err, 2318)
			return
		}
		httpx.RecordTokenIssued(oauth2.GrantImplicit, "ok")

		if st.Redirect != "" {
			// Estilo implicit: tokens en el fragment, nunca en query
			frag := "id_token=" + url.QueryEscape(resp.IDToken)
			if resp.AccessToken != "" {
				frag += "&access_token=" + url.QueryEscape(resp.AccessToken) + "&token_type=Bearer"
			}
			http.Redirect(w, r, st.Redirect+"#"+frag, http.StatusFound)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

// upsertGoogleUser resuelve el usuario local por email y refresca el vínculo
// con la cuenta de Google. Usuarios nuevos se crean al vuelo.
func upsertGoogleUser(r *http.Request, c *app.Container, email string) (*core.User, error) {
	ctx := r.Context()
	user, err := c.Store.GetUserByUsername(ctx, email)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		user = &core.User{
			ID:       uuid.NewString(),
			Username: email,
			Email:    email,
		}
		if err := c.Store.CreateUser(ctx, user); err != nil {
			return nil, err
		}
	}

	exp := time.Now().Add(c.Issuer.AccessTTL)
	link := &core.LinkedGoogleAccount{
		UserID:    user.ID,
		Email:     email,
		ExpiresAt: &exp,
	}
	if err := c.Store.LinkGoogleAccount(ctx, link); err != nil {
		return nil, err
	}
	return user, nil
}
