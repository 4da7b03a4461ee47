package core

import "time"

// Client es una aplicación OAuth2 registrada.
// SecretHash es nil para clients públicos (sin secret).
// IsConfidential nil => confidencial: solo un false explícito lo vuelve público.
type Client struct {
	ID             string    `json:"client_id"`
	SecretHash     *string   `json:"-"`
	Name           string    `json:"name"` // único global
	Description    string    `json:"description,omitempty"`
	OwnerUserID    *string   `json:"owner_user_id,omitempty"`
	AutoApprove    bool      `json:"auto_approve"`
	IsConfidential *bool     `json:"is_confidential,omitempty"`
	RedirectURIs   []string  `json:"redirect_uris"`
	AllowedScopes  []string  `json:"allowed_scopes"`
	DefaultScopes  []string  `json:"default_scopes,omitempty"`
	GrantTypes     []string  `json:"grant_types"`
	CreatedAt      time.Time `json:"created_at"`
}

type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}

// RefreshTokenID registra el jti de un refresh emitido, independiente del
// payload firmado, para poder revocar/expirar sin decodificar el token.
type RefreshTokenID struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
}

// LinkedGoogleAccount es la identidad federada (0..1) de un usuario.
// ExpiresAt nil => vínculo sin expiración registrada.
type LinkedGoogleAccount struct {
	UserID    string
	Email     string
	ExpiresAt *time.Time
}

// Claves de firma (signer): active | retiring | retired
type KeyStatus string

const (
	KeyActive   KeyStatus = "active"
	KeyRetiring KeyStatus = "retiring"
	KeyRetired  KeyStatus = "retired"
)

type SigningKey struct {
	KID        string
	Alg        string // "EdDSA"
	PublicKey  []byte
	PrivateKey []byte
	Status     KeyStatus
	NotBefore  time.Time
}
