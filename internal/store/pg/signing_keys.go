package pg

import (
	"context"
	"errors"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/jackc/pgx/v5"
)

// Implementa el signingKeyStore que consume jwt.Keystore.

func (s *Store) GetActiveSigningKey(ctx context.Context) (*core.SigningKey, error) {
	const q = `
SELECT kid, alg, public_key, private_key, status, not_before
FROM signing_key
WHERE status = 'active' AND not_before <= now()
ORDER BY not_before DESC
LIMIT 1`
	var k core.SigningKey
	if err := s.pool.QueryRow(ctx, q).Scan(&k.KID, &k.Alg, &k.PublicKey, &k.PrivateKey, &k.Status, &k.NotBefore); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

func (s *Store) ListPublicSigningKeys(ctx context.Context) ([]core.SigningKey, error) {
	const q = `
SELECT kid, alg, public_key, status, not_before
FROM signing_key
WHERE status IN ('active','retiring')
ORDER BY status, not_before DESC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.SigningKey
	for rows.Next() {
		var k core.SigningKey
		if err := rows.Scan(&k.KID, &k.Alg, &k.PublicKey, &k.Status, &k.NotBefore); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) InsertSigningKey(ctx context.Context, k *core.SigningKey) error {
	const q = `
INSERT INTO signing_key (kid, alg, public_key, private_key, status, not_before)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q, k.KID, k.Alg, k.PublicKey, k.PrivateKey, k.Status, k.NotBefore)
	if isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}
