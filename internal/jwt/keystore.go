package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

var ErrNoActiveKey = errors.New("no_active_signing_key")

type signingKeyStore interface {
	GetActiveSigningKey(ctx context.Context) (*core.SigningKey, error)
	ListPublicSigningKeys(ctx context.Context) ([]core.SigningKey, error)
	InsertSigningKey(ctx context.Context, k *core.SigningKey) error
}

// activeKey es el snapshot cacheado de la clave de firma vigente.
type activeKey struct {
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func (a activeKey) ok() bool { return a.kid != "" && len(a.priv) > 0 }

// Keystore lee claves del store con un cache corto encima. La rotación es
// metadata explícita (status + not_before), no convención de índice cero:
// el issuer solo pide Active().
type Keystore struct {
	ctx   context.Context
	store signingKeyStore

	mu        sync.RWMutex
	cur       activeKey
	curUntil  time.Time
	jwks      []byte
	jwksUntil time.Time

	keyTTL  time.Duration
	jwksTTL time.Duration
}

func NewKeystore(ctx context.Context, s signingKeyStore) *Keystore {
	return &Keystore{
		ctx:     ctx,
		store:   s,
		keyTTL:  30 * time.Second,
		jwksTTL: 15 * time.Second,
	}
}

// EnsureBootstrap genera una clave inicial si el store está vacío.
func (k *Keystore) EnsureBootstrap() error {
	_, err := k.store.GetActiveSigningKey(k.ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	pub, priv, err := GenerateEd25519()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return k.store.InsertSigningKey(k.ctx, &core.SigningKey{
		KID:        "boot-" + now.Format("20060102T150405Z"),
		Alg:        "EdDSA",
		PublicKey:  pub,
		PrivateKey: priv,
		Status:     core.KeyActive,
		NotBefore:  now,
	})
}

// Active devuelve la clave de firma vigente, del cache si no venció.
func (k *Keystore) Active() (kid string, priv ed25519.PrivateKey, pub ed25519.PublicKey, err error) {
	k.mu.RLock()
	if time.Now().Before(k.curUntil) && k.cur.ok() {
		a := k.cur
		k.mu.RUnlock()
		return a.kid, a.priv, a.pub, nil
	}
	k.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if time.Now().Before(k.curUntil) && k.cur.ok() {
		return k.cur.kid, k.cur.priv, k.cur.pub, nil
	}

	rec, err := k.store.GetActiveSigningKey(k.ctx)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", nil, nil, ErrNoActiveKey
		}
		return "", nil, nil, err
	}
	k.cur = activeKey{
		kid:  rec.KID,
		priv: ed25519.PrivateKey(rec.PrivateKey),
		pub:  ed25519.PublicKey(rec.PublicKey),
	}
	k.curUntil = time.Now().Add(k.keyTTL)
	return k.cur.kid, k.cur.priv, k.cur.pub, nil
}

// PublicKeyByKID resuelve la pubkey para un KID (active o retiring).
func (k *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	k.mu.RLock()
	if kid != "" && kid == k.cur.kid && len(k.cur.pub) > 0 {
		pub := append(ed25519.PublicKey(nil), k.cur.pub...)
		k.mu.RUnlock()
		return pub, nil
	}
	k.mu.RUnlock()

	recs, err := k.store.ListPublicSigningKeys(k.ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.KID == kid {
			return ed25519.PublicKey(r.PublicKey), nil
		}
	}
	return nil, errors.New("kid_not_found")
}

// JWKSJSON arma el JWKS publicable a partir del store, con cache corto.
func (k *Keystore) JWKSJSON() ([]byte, error) {
	k.mu.RLock()
	if time.Now().Before(k.jwksUntil) && len(k.jwks) > 0 {
		j := k.jwks
		k.mu.RUnlock()
		return j, nil
	}
	k.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if time.Now().Before(k.jwksUntil) && len(k.jwks) > 0 {
		return k.jwks, nil
	}

	pubKeys, err := k.store.ListPublicSigningKeys(k.ctx)
	if err != nil {
		return nil, err
	}
	k.jwks = buildJWKS(pubKeys)
	k.jwksUntil = time.Now().Add(k.jwksTTL)
	return k.jwks, nil
}
