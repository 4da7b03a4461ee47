// Package pg implementa core.Repository sobre Postgres (pgx).
// La integridad referencial (cascadas de borrado) vive en el schema:
// ver migrations/postgres.
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ pool *pgxpool.Pool }

// Config de tuning del pool (opcional).
type Config struct {
	MaxOpenConns    int
	MinConns        int
	ConnMaxLifetime time.Duration
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// Arranque no bloqueante: si la DB está caída igual levantamos.
	if err := pool.Ping(ctx); err != nil {
		logger.Named("store.pg").Warn("startup ping failed", logger.Err(err))
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (metrics/migraciones).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

type pgTx struct{ tx pgx.Tx }

func (t pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (s *Store) BeginTx(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgTx{tx: tx}, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ====================== CLIENTS ======================

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	const q = `
INSERT INTO client (client_id, secret_hash, name, description, owner_user_id,
                    auto_approve, is_confidential, redirect_uris, allowed_scopes,
                    default_scopes, grant_types, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`
	_, err := s.pool.Exec(ctx, q,
		c.ID, c.SecretHash, c.Name, c.Description, c.OwnerUserID,
		c.AutoApprove, c.IsConfidential, c.RedirectURIs, c.AllowedScopes,
		c.DefaultScopes, c.GrantTypes)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrConflict
		}
		logger.Named("store.pg").Error("create client", logger.ClientID(c.ID), logger.Err(err))
		return err
	}
	return nil
}

func scanClient(row pgx.Row) (*core.Client, error) {
	var c core.Client
	err := row.Scan(&c.ID, &c.SecretHash, &c.Name, &c.Description, &c.OwnerUserID,
		&c.AutoApprove, &c.IsConfidential, &c.RedirectURIs, &c.AllowedScopes,
		&c.DefaultScopes, &c.GrantTypes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

const clientCols = `client_id, secret_hash, name, description, owner_user_id,
auto_approve, is_confidential, redirect_uris, allowed_scopes,
default_scopes, grant_types, created_at`

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	q := `SELECT ` + clientCols + ` FROM client WHERE client_id = $1 LIMIT 1`
	return scanClient(s.pool.QueryRow(ctx, q, clientID))
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	q := `SELECT ` + clientCols + ` FROM client ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.SecretHash, &c.Name, &c.Description, &c.OwnerUserID,
			&c.AutoApprove, &c.IsConfidential, &c.RedirectURIs, &c.AllowedScopes,
			&c.DefaultScopes, &c.GrantTypes, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM client WHERE client_id = $1`, clientID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ====================== USERS ======================

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	const q = `INSERT INTO app_user (id, username, email, created_at) VALUES ($1, $2, $3, now())`
	_, err := s.pool.Exec(ctx, q, u.ID, u.Username, u.Email)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	const q = `SELECT id, username, email, created_at FROM app_user WHERE id = $1 LIMIT 1`
	var u core.User
	if err := s.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	const q = `SELECT id, username, email, created_at FROM app_user WHERE username = $1 LIMIT 1`
	var u core.User
	if err := s.pool.QueryRow(ctx, q, username).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DeleteUser: las FKs ON DELETE CASCADE arrastran refresh ids, vínculo
// federado y clients del usuario.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM app_user WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ====================== REFRESH TOKEN IDS ======================

func (s *Store) CreateRefreshTokenID(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	const q = `INSERT INTO refresh_token_id (jti, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := s.pool.Exec(ctx, q, jti, userID, expiresAt)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	if err != nil {
		logger.Named("store.pg").Error("create refresh id", logger.JTI(jti), logger.Err(err))
	}
	return err
}

func (s *Store) GetRefreshTokenID(ctx context.Context, jti string) (*core.RefreshTokenID, error) {
	const q = `SELECT jti, user_id, expires_at FROM refresh_token_id WHERE jti = $1 LIMIT 1`
	var rec core.RefreshTokenID
	if err := s.pool.QueryRow(ctx, q, jti).Scan(&rec.JTI, &rec.UserID, &rec.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) RevokeRefreshTokenID(ctx context.Context, jti string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM refresh_token_id WHERE jti = $1`, jti)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ====================== LINKED GOOGLE ACCOUNT ======================

func (s *Store) GetLinkedGoogleAccount(ctx context.Context, userID string) (*core.LinkedGoogleAccount, error) {
	const q = `SELECT user_id, email, expires_at FROM user_google_account WHERE user_id = $1 LIMIT 1`
	var l core.LinkedGoogleAccount
	if err := s.pool.QueryRow(ctx, q, userID).Scan(&l.UserID, &l.Email, &l.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (s *Store) LinkGoogleAccount(ctx context.Context, l *core.LinkedGoogleAccount) error {
	const q = `
INSERT INTO user_google_account (user_id, email, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, expires_at = EXCLUDED.expires_at`
	_, err := s.pool.Exec(ctx, q, l.UserID, l.Email, l.ExpiresAt)
	return err
}

func (s *Store) UnlinkGoogleAccount(ctx context.Context, userID string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM user_google_account WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
