package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	log := logger.Named("handlers.readyz")
	return func(w http.ResponseWriter, r *http.Request) {
		if v := os.Getenv("SERVICE_VERSION"); v != "" {
			w.Header().Set("X-Service-Version", v)
		}
		if kid, err := c.Issuer.ActiveKID(); err == nil && kid != "" {
			w.Header().Set("X-JWKS-KID", kid)
		}

		// 1) DB
		if err := c.Store.Ping(r.Context()); err != nil {
			log.Error("db unavailable", logger.Err(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database unavailable", 2001)
			return
		}

		// 2) Cache (codes y state de login viven ahí)
		if err := c.Cache.Ping(r.Context()); err != nil {
			log.Error("cache unavailable", logger.Err(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "cache_unavailable", "cache unavailable", 2002)
			return
		}

		// 3) Self-check EdDSA: firmar y verificar un JWT efímero en memoria
		now := time.Now().UTC()
		claims := jwtv5.MapClaims{
			"iss": c.Issuer.Iss,
			"sub": "selfcheck",
			"aud": "health",
			"iat": now.Unix(),
			"nbf": now.Unix(),
			"exp": now.Add(60 * time.Second).Unix(),
		}
		signed, _, err := c.Issuer.SignRaw(claims)
		if err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "sign_failed", "no se pudo firmar self-check", 2004)
			return
		}
		parsed, err := jwtv5.Parse(signed, c.Issuer.Keyfunc(),
			jwtv5.WithValidMethods([]string{"EdDSA"}),
			jwtv5.WithIssuer(c.Issuer.Iss),
		)
		if err != nil || !parsed.Valid {
			httpx.WriteError(w, http.StatusServiceUnavailable, "verify_failed", "self-check: verificación falló", 2005)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
