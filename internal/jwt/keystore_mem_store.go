package jwt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

// MemorySigningKeyStore guarda las claves de firma en memoria, indexadas
// por KID. Para driver memory y tests; con postgres las claves viven en pg.
type MemorySigningKeyStore struct {
	mu   sync.RWMutex
	byID map[string]core.SigningKey
}

func NewMemorySigningKeyStore() *MemorySigningKeyStore {
	return &MemorySigningKeyStore{byID: make(map[string]core.SigningKey)}
}

func (m *MemorySigningKeyStore) InsertSigningKey(ctx context.Context, k *core.SigningKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[k.KID] = *k
	return nil
}

func (m *MemorySigningKeyStore) GetActiveSigningKey(ctx context.Context) (*core.SigningKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	var act *core.SigningKey
	for kid := range m.byID {
		k := m.byID[kid]
		if k.Status != core.KeyActive || k.NotBefore.After(now) {
			continue
		}
		// gana la activa más reciente
		if act == nil || k.NotBefore.After(act.NotBefore) {
			cp := k
			act = &cp
		}
	}
	if act == nil {
		return nil, core.ErrNotFound
	}
	return act, nil
}

func (m *MemorySigningKeyStore) ListPublicSigningKeys(ctx context.Context) ([]core.SigningKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.SigningKey, 0, len(m.byID))
	for _, k := range m.byID {
		if k.Status != core.KeyActive && k.Status != core.KeyRetiring {
			continue
		}
		k.PrivateKey = nil // la privada nunca sale de acá
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == core.KeyActive
		}
		return out[i].NotBefore.After(out[j].NotBefore)
	})
	return out, nil
}
