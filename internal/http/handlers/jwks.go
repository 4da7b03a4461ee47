package handlers

import (
	"net/http"

	"github.com/dropDatabas3/gatejohn/internal/app"
)

// NewJWKSHandler publica las claves de verificación (active + retiring).
// El keystore ya cachea el documento; acá solo se sirve.
func NewJWKSHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(c.Issuer.JWKSJSON())
	}
}
