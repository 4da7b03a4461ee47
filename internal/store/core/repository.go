package core

import (
	"context"
	"time"
)

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Repository interface {
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)

	// Clients (registro administrativo; lectura para el core de tokens)
	CreateClient(ctx context.Context, c *Client) error
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	DeleteClient(ctx context.Context, clientID string) error

	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// DeleteUser borra en cascada refresh ids, vínculos y clients del usuario.
	DeleteUser(ctx context.Context, id string) error

	// Refresh token ids (jti) para revocación/expiry
	CreateRefreshTokenID(ctx context.Context, jti, userID string, expiresAt time.Time) error
	GetRefreshTokenID(ctx context.Context, jti string) (*RefreshTokenID, error)
	RevokeRefreshTokenID(ctx context.Context, jti string) error

	// Identidad federada vinculada (0..1 por usuario)
	GetLinkedGoogleAccount(ctx context.Context, userID string) (*LinkedGoogleAccount, error)
	LinkGoogleAccount(ctx context.Context, l *LinkedGoogleAccount) error
	UnlinkGoogleAccount(ctx context.Context, userID string) error
}
