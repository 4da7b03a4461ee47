package oauth2

import (
	"context"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/security/password"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

const (
	ClientConfidential = "confidential"
	ClientPublic       = "public"
)

// Métodos de autenticación del token endpoint.
const (
	AuthMethodBasic = "client_secret_basic"
	AuthMethodPost  = "client_secret_post"
	AuthMethodNone  = "none"
)

// Registry aplica la política de seguridad de los clients registrados.
// Es de solo lectura para el subsistema de tokens: el alta/baja vive en admin.
type Registry struct {
	store core.Repository
}

func NewRegistry(store core.Repository) *Registry {
	return &Registry{store: store}
}

// Lookup busca un client por client_id. Devuelve core.ErrNotFound si no existe.
func (r *Registry) Lookup(ctx context.Context, clientID string) (*core.Client, error) {
	return r.store.GetClientByClientID(ctx, clientID)
}

// VerifySecret compara el secret presentado contra el hash almacenado.
// Nunca compara plaintext; clients sin secret fallan siempre.
func (r *Registry) VerifySecret(cl *core.Client, presented string) bool {
	if cl == nil || cl.SecretHash == nil || presented == "" {
		return false
	}
	return password.Verify(presented, *cl.SecretHash)
}

// ClientType clasifica el client: "public" solo cuando is_confidential es
// false explícito. Flag ausente => "confidential" (fail closed, a propósito).
func ClientType(cl *core.Client) string {
	if cl.IsConfidential != nil && !*cl.IsConfidential {
		return ClientPublic
	}
	return ClientConfidential
}

// CheckAuthMethod: confidenciales aceptan client_secret_basic|client_secret_post,
// públicos solo "none". Ningún otro método se acepta jamás.
func CheckAuthMethod(cl *core.Client, method string) bool {
	switch ClientType(cl) {
	case ClientConfidential:
		return method == AuthMethodBasic || method == AuthMethodPost
	default:
		return method == AuthMethodNone
	}
}

// CheckResponseType: solo "code". Nada de implicit en el authorize endpoint.
func CheckResponseType(responseType string) bool {
	return responseType == "code"
}

// CheckGrantType verifica que el grant pedido esté habilitado para el client.
func CheckGrantType(cl *core.Client, grantType string) bool {
	for _, g := range cl.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// ValidateScopes acepta la lista de un solo elemento separado por comas
// (quirk histórico del protocolo de este server, se preserva tal cual) y
// chequea que TODOS los scopes pedidos estén permitidos para el client.
// Con más de un elemento no hay quirk: cada entrada se chequea literal.
func ValidateScopes(cl *core.Client, scopes []string) bool {
	if len(scopes) == 0 {
		return false
	}
	if len(scopes) == 1 {
		scopes = strings.Split(scopes[0], ",")
	}
	for _, s := range scopes {
		if !scopeAllowed(cl, s) {
			return false
		}
	}
	return true
}

// CheckRequestedScopes: requested ⊆ allowed, sobre lista ya normalizada.
func CheckRequestedScopes(cl *core.Client, requested []string) bool {
	for _, s := range requested {
		if !scopeAllowed(cl, s) {
			return false
		}
	}
	return true
}

func scopeAllowed(cl *core.Client, scope string) bool {
	for _, a := range cl.AllowedScopes {
		if a == scope {
			return true
		}
	}
	return false
}

// DefaultRedirectURI devuelve la primera URI registrada.
func DefaultRedirectURI(cl *core.Client) (string, error) {
	if len(cl.RedirectURIs) == 0 {
		return "", InvalidRequest("client has no registered redirect URIs")
	}
	return cl.RedirectURIs[0], nil
}

// NormalizeScope convierte la representación ambigua (string separado por
// espacios o lista) en una lista tipada apenas entra al core.
func NormalizeScope(raw string) []string {
	return strings.Fields(raw)
}
