// Package login contiene el gate de redirect de los entry points de login.
//
// Links como este deben rechazarse antes de emitir cualquier redirect:
//
//	https://idp.example.com/login/google?redirect=http://external-site.com
package login

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

// ErrInvalidRedirect marca una URL fuera del set permitido.
// El borde responde error directo, nunca redirige.
type ErrInvalidRedirect struct{ URL string }

func (e *ErrInvalidRedirect) Error() string {
	return fmt.Sprintf("invalid login redirect URL %s", e.URL)
}

// RedirectValidator computa, por request, el set de URIs al que un flujo de
// login puede volver. Componente inyectado en cada handler de login (nada de
// mixins): mismo contrato Validate/AllowedRedirects para todos los providers.
type RedirectValidator struct {
	store core.Repository

	baseURL       string
	whitelist     []string
	googleEnabled bool
}

func NewRedirectValidator(store core.Repository, baseURL string, whitelist []string, googleEnabled bool) *RedirectValidator {
	return &RedirectValidator{
		store:         store,
		baseURL:       baseURL,
		whitelist:     whitelist,
		googleEnabled: googleEnabled,
	}
}

// normalize recorta una sola barra final antes de comparar.
func normalize(u string) string {
	return strings.TrimSuffix(u, "/")
}

// AllowedRedirects arma el set permitido: whitelist estática del operador,
// la base URL propia y su forma origin (scheme+host), el callback del login
// federado cuando está habilitado, y toda redirect URI de todo client
// conocido. Se computa por request: los clients pueden cambiar.
func (v *RedirectValidator) AllowedRedirects(ctx context.Context) (map[string]struct{}, error) {
	allowed := make(map[string]struct{}, len(v.whitelist)+4)
	for _, w := range v.whitelist {
		allowed[normalize(w)] = struct{}{}
	}
	allowed[normalize(v.baseURL)] = struct{}{}
	if u, err := url.Parse(v.baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		allowed[u.Scheme+"://"+u.Host] = struct{}{}
	}
	if v.googleEnabled {
		allowed[normalize(v.baseURL)+"/login/google/callback"] = struct{}{}
	}

	clients, err := v.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	for _, cl := range clients {
		for _, ru := range cl.RedirectURIs {
			allowed[normalize(ru)] = struct{}{}
		}
	}
	return allowed, nil
}

// Validate falla cerrado: match exacto o rechazo. Sin prefijos ni parciales
// (un prefix match reabriría el open redirect).
func (v *RedirectValidator) Validate(ctx context.Context, raw string) error {
	allowed, err := v.AllowedRedirects(ctx)
	if err != nil {
		return err
	}
	if _, ok := allowed[normalize(raw)]; !ok {
		return &ErrInvalidRedirect{URL: raw}
	}
	return nil
}
