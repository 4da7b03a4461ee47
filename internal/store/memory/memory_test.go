package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
)

func TestClientCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	cl := &core.Client{ID: "c-1", Name: "portal", RedirectURIs: []string{"https://a/cb"}}
	if err := s.CreateClient(ctx, cl); err != nil {
		t.Fatalf("create: %v", err)
	}

	// name is unique
	err := s.CreateClient(ctx, &core.Client{ID: "c-2", Name: "portal"})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("duplicate name: want ErrConflict, got %v", err)
	}

	got, err := s.GetClientByClientID(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "portal" {
		t.Fatalf("name = %q", got.Name)
	}

	list, err := s.ListClients(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}

	if err := s.DeleteClient(ctx, "c-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetClientByClientID(ctx, "c-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUserLookup(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &core.User{ID: "u-1", Username: "ada", Email: "ada@example.com"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	byID, err := s.GetUserByID(ctx, "u-1")
	if err != nil || byID.Username != "ada" {
		t.Fatalf("by id: %v %v", byID, err)
	}
	byName, err := s.GetUserByUsername(ctx, "ada")
	if err != nil || byName.ID != "u-1" {
		t.Fatalf("by username: %v %v", byName, err)
	}
}

func TestRefreshTokenIDLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	exp := time.Now().Add(time.Hour)
	if err := s.CreateRefreshTokenID(ctx, "jti-1", "u-1", exp); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec, err := s.GetRefreshTokenID(ctx, "jti-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.UserID != "u-1" || !rec.ExpiresAt.Equal(exp) {
		t.Fatalf("rec = %+v", rec)
	}

	if err := s.RevokeRefreshTokenID(ctx, "jti-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := s.GetRefreshTokenID(ctx, "jti-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("after revoke: want ErrNotFound, got %v", err)
	}
}

// Deleting a user drops everything hanging off it: refresh token ids, the
// linked google account and any clients the user owns.
func TestDeleteUser_Cascades(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &core.User{ID: "u-1", Username: "ada"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("user: %v", err)
	}
	owner := "u-1"
	if err := s.CreateClient(ctx, &core.Client{ID: "c-1", Name: "owned", OwnerUserID: &owner}); err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := s.CreateRefreshTokenID(ctx, "jti-1", "u-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("jti: %v", err)
	}
	if err := s.LinkGoogleAccount(ctx, &core.LinkedGoogleAccount{UserID: "u-1", Email: "ada@gmail.test"}); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := s.DeleteUser(ctx, "u-1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	if _, err := s.GetUserByID(ctx, "u-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatal("user must be gone")
	}
	if _, err := s.GetRefreshTokenID(ctx, "jti-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatal("refresh token ids must cascade")
	}
	if _, err := s.GetLinkedGoogleAccount(ctx, "u-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatal("linked account must cascade")
	}
	if _, err := s.GetClientByClientID(ctx, "c-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatal("owned clients must cascade")
	}
}

func TestLinkGoogleAccount_Upsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateUser(ctx, &core.User{ID: "u-1", Username: "ada"}); err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := s.LinkGoogleAccount(ctx, &core.LinkedGoogleAccount{UserID: "u-1", Email: "old@gmail.test"}); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.LinkGoogleAccount(ctx, &core.LinkedGoogleAccount{UserID: "u-1", Email: "new@gmail.test"}); err != nil {
		t.Fatalf("relink: %v", err)
	}
	got, err := s.GetLinkedGoogleAccount(ctx, "u-1")
	if err != nil || got.Email != "new@gmail.test" {
		t.Fatalf("got %v %v", got, err)
	}

	if err := s.UnlinkGoogleAccount(ctx, "u-1"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := s.GetLinkedGoogleAccount(ctx, "u-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatal("link must be gone")
	}
}
