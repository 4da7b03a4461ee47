package handlers

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/app"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
)

type oidcMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ClaimsSupported                   []string `json:"claims_supported,omitempty"`
}

// NewOIDCDiscoveryHandler publica el documento de configuración OIDC.
func NewOIDCDiscoveryHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET/HEAD", 1001)
			return
		}

		iss := strings.TrimRight(c.Issuer.Iss, "/")
		meta := oidcMetadata{
			Issuer:                iss,
			AuthorizationEndpoint: iss + "/oauth2/authorize",
			TokenEndpoint:         iss + "/oauth2/token",
			RevocationEndpoint:    iss + "/oauth2/revoke",
			JWKSURI:               iss + "/.well-known/jwks.json",

			ResponseTypesSupported: []string{"code"},
			GrantTypesSupported:    []string{"authorization_code", "refresh_token", "implicit"},
			SubjectTypesSupported:  []string{"public"},

			// Firmamos con EdDSA (Ed25519)
			IDTokenSigningAlgValuesSupported: []string{"EdDSA"},

			TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},

			ScopesSupported: []string{"openid", "user", "data"},
			ClaimsSupported: []string{"iss", "sub", "aud", "exp", "iat", "azp", "nonce", "auth_time", "context", "linked_google_account"},
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		httpx.WriteJSON(w, http.StatusOK, meta)
	}
}
