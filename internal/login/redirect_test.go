package login

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/dropDatabas3/gatejohn/internal/store/memory"
)

func newValidator(t *testing.T, whitelist []string, googleEnabled bool) (*RedirectValidator, *memory.Store) {
	t.Helper()
	store := memory.New()
	if err := store.CreateClient(context.Background(), &core.Client{
		ID:           "client-1",
		Name:         "portal",
		RedirectURIs: []string{"https://portal.example.com/callback"},
	}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return NewRedirectValidator(store, "https://idp.example.com", whitelist, googleEnabled), store
}

func TestValidate_AllowsKnownTargets(t *testing.T) {
	v, _ := newValidator(t, []string{"https://ops.example.com/home"}, true)
	ctx := context.Background()

	allowed := []string{
		"https://ops.example.com/home",            // operator whitelist
		"https://idp.example.com",                 // base URL
		"https://idp.example.com/",                // one trailing slash stripped
		"https://portal.example.com/callback",     // registered client URI
		"https://idp.example.com/login/google/callback", // provider callback
	}
	for _, u := range allowed {
		if err := v.Validate(ctx, u); err != nil {
			t.Fatalf("Validate(%q) = %v, want ok", u, err)
		}
	}
}

func TestValidate_RejectsOutsideSet(t *testing.T) {
	v, _ := newValidator(t, nil, false)
	ctx := context.Background()

	rejected := []string{
		"http://external-site.com",
		"https://portal.example.com/callback/extra", // no prefix matching
		"https://portal.example.com",                // partial of a registered URI
		"https://evil.com/https://portal.example.com/callback", // embedded-target trick
		"https://idp.example.com//",                 // only one slash is stripped
		"",
	}
	for _, u := range rejected {
		err := v.Validate(ctx, u)
		if err == nil {
			t.Fatalf("Validate(%q) accepted, want rejection", u)
		}
		var ir *ErrInvalidRedirect
		if !errors.As(err, &ir) {
			t.Fatalf("Validate(%q) = %v, want ErrInvalidRedirect", u, err)
		}
	}
}

func TestValidate_GoogleCallbackOnlyWhenEnabled(t *testing.T) {
	v, _ := newValidator(t, nil, false)
	if err := v.Validate(context.Background(), "https://idp.example.com/login/google/callback"); err == nil {
		t.Fatal("callback must not be allowed with google disabled")
	}
}

func TestAllowedRedirects_TracksClientChanges(t *testing.T) {
	v, store := newValidator(t, nil, false)
	ctx := context.Background()

	target := "https://new.example.com/cb"
	if err := v.Validate(ctx, target); err == nil {
		t.Fatal("unknown URI accepted")
	}

	if err := store.CreateClient(ctx, &core.Client{
		ID:           "client-2",
		Name:         "late-arrival",
		RedirectURIs: []string{target},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// the set is computed per request, so the new client counts immediately
	if err := v.Validate(ctx, target); err != nil {
		t.Fatalf("Validate after registration = %v", err)
	}
}
