package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

// NewOAuthRevokeHandler da de baja un refresh token: borra su jti del store,
// con lo que el token firmado deja de servir aunque siga siendo válido
// criptográficamente. Un token ya revocado o desconocido no es error.
func NewOAuthRevokeHandler(c *app.Container) http.HandlerFunc {
	log := logger.Named("handlers.revoke")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST", 1000)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "form inválido", 2220)
			return
		}
		raw := strings.TrimSpace(r.PostForm.Get("token"))
		if raw == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token es obligatorio", 2221)
			return
		}

		claims, err := jwtx.ParseEdDSA(raw, c.Issuer.Keys, c.Issuer.Iss)
		if err != nil {
			// Un token que no emitimos nosotros no tiene nada que revocar.
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token inválido", 2222)
			return
		}
		jti, _ := claims["jti"].(string)
		if jti == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "el token no es un refresh token", 2223)
			return
		}

		if err := c.Store.RevokeRefreshTokenID(r.Context(), jti); err != nil && !errors.Is(err, core.ErrNotFound) {
			log.Error("revoke failed", logger.JTI(jti), logger.Err(err))
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo revocar", 2224)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
