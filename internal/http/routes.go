package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Registrar lo implementan los handlers que montan sus propias rutas.
type Registrar interface {
	Register(r chi.Router)
}

// RouterDeps junta los handlers del servicio. El router no conoce la app:
// solo cablea rutas y middlewares.
type RouterDeps struct {
	Readyz         http.HandlerFunc
	JWKS           http.HandlerFunc
	OIDCDiscovery  http.HandlerFunc
	OAuthAuthorize http.HandlerFunc
	OAuthToken     http.HandlerFunc
	OAuthRevoke    http.HandlerFunc
	GoogleLogin    http.HandlerFunc
	GoogleCallback http.HandlerFunc

	AdminClients Registrar

	CORSAllowedOrigins []string
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRecover)
	r.Use(WithRequestID)
	r.Use(WithSecurityHeaders)
	r.Use(WithMetrics)
	r.Use(WithLogging)
	if len(deps.CORSAllowedOrigins) > 0 {
		allowed := deps.CORSAllowedOrigins
		r.Use(func(next http.Handler) http.Handler {
			return WithCORS(next, allowed)
		})
	}

	// Health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", deps.Readyz)

	// Discovery + JWKS
	r.Get("/.well-known/jwks.json", deps.JWKS)
	r.Get("/.well-known/openid-configuration", deps.OIDCDiscovery)

	// OAuth2/OIDC
	r.Get("/oauth2/authorize", deps.OAuthAuthorize)
	r.Post("/oauth2/token", deps.OAuthToken)
	if deps.OAuthRevoke != nil {
		r.Post("/oauth2/revoke", deps.OAuthRevoke)
	}

	// Login federado
	if deps.GoogleLogin != nil {
		r.Get("/login/google", deps.GoogleLogin)
		r.Get("/login/google/callback", deps.GoogleCallback)
	}

	// Admin
	if deps.AdminClients != nil {
		deps.AdminClients.Register(r)
	}

	return r
}
