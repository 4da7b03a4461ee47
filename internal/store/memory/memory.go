// Package memory implementa core.Repository en memoria.
// Para desarrollo y tests; la cascada de borrado replica las FKs del schema pg.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

type Store struct {
	mu      sync.RWMutex
	clients map[string]*core.Client              // por client_id
	names   map[string]string                    // name -> client_id (unicidad)
	users   map[string]*core.User                // por id
	jtis    map[string]*core.RefreshTokenID      // por jti
	linked  map[string]*core.LinkedGoogleAccount // por user_id
}

func New() *Store {
	return &Store{
		clients: make(map[string]*core.Client),
		names:   make(map[string]string),
		users:   make(map[string]*core.User),
		jtis:    make(map[string]*core.RefreshTokenID),
		linked:  make(map[string]*core.LinkedGoogleAccount),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

type noopTx struct{}

func (noopTx) Commit(context.Context) error   { return nil }
func (noopTx) Rollback(context.Context) error { return nil }

func (s *Store) BeginTx(context.Context) (core.Tx, error) { return noopTx{}, nil }

// ====================== CLIENTS ======================

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return core.ErrConflict
	}
	if _, ok := s.names[c.Name]; ok {
		return core.ErrConflict
	}
	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.clients[c.ID] = &cp
	s.names[c.Name] = c.ID
	return nil
}

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (s *Store) DeleteClient(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.names, c.Name)
	delete(s.clients, clientID)
	return nil
}

// ====================== USERS ======================

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return core.ErrConflict
	}
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

// DeleteUser borra al usuario y, en cascada, sus refresh ids, su vínculo
// federado y los clients que le pertenecen (como las FKs ON DELETE CASCADE).
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.users, id)
	delete(s.linked, id)
	for jti, rec := range s.jtis {
		if rec.UserID == id {
			delete(s.jtis, jti)
		}
	}
	for cid, c := range s.clients {
		if c.OwnerUserID != nil && *c.OwnerUserID == id {
			delete(s.names, c.Name)
			delete(s.clients, cid)
		}
	}
	return nil
}

// ====================== REFRESH TOKEN IDS ======================

func (s *Store) CreateRefreshTokenID(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jtis[jti]; ok {
		return core.ErrConflict
	}
	s.jtis[jti] = &core.RefreshTokenID{JTI: jti, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (s *Store) GetRefreshTokenID(ctx context.Context, jti string) (*core.RefreshTokenID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jtis[jti]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) RevokeRefreshTokenID(ctx context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jtis[jti]; !ok {
		return core.ErrNotFound
	}
	delete(s.jtis, jti)
	return nil
}

// ====================== LINKED GOOGLE ACCOUNT ======================

func (s *Store) GetLinkedGoogleAccount(ctx context.Context, userID string) (*core.LinkedGoogleAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.linked[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) LinkGoogleAccount(ctx context.Context, l *core.LinkedGoogleAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[l.UserID]; !ok {
		return core.ErrNotFound
	}
	cp := *l
	s.linked[l.UserID] = &cp
	return nil
}

func (s *Store) UnlinkGoogleAccount(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.linked[userID]; !ok {
		return core.ErrNotFound
	}
	delete(s.linked, userID)
	return nil
}
