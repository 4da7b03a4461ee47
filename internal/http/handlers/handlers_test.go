package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/app"
	"github.com/dropDatabas3/gatejohn/internal/cache"
	httpx "github.com/dropDatabas3/gatejohn/internal/http"
	"github.com/dropDatabas3/gatejohn/internal/http/handlers"
	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
	"github.com/dropDatabas3/gatejohn/internal/login"
	"github.com/dropDatabas3/gatejohn/internal/oauth2"
	"github.com/dropDatabas3/gatejohn/internal/security/password"
	"github.com/dropDatabas3/gatejohn/internal/store/core"
	"github.com/dropDatabas3/gatejohn/internal/store/memory"
)

const (
	testBaseURL    = "https://idp.test"
	testSecret     = "shhh-client-secret"
	testAdminKey   = "admin-key-123"
	confidentialID = "conf-client"
	publicID       = "pub-client"
)

type fixture struct {
	c      *app.Container
	srv    *httptest.Server
	user   *core.User
	client *http.Client
}

func falsePtr() *bool { b := false; return &b }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	user := &core.User{ID: "u-1", Username: "ada", Email: "ada@example.com"}
	require.NoError(t, store.CreateUser(ctx, user))

	hash, err := password.Hash(password.Default, testSecret)
	require.NoError(t, err)
	require.NoError(t, store.CreateClient(ctx, &core.Client{
		ID:            confidentialID,
		Name:          "confidential-app",
		SecretHash:    &hash,
		RedirectURIs:  []string{"https://app.test/cb"},
		AllowedScopes: []string{"openid", "user", "data"},
		GrantTypes:    []string{"authorization_code", "refresh_token"},
		AutoApprove:   true,
	}))
	require.NoError(t, store.CreateClient(ctx, &core.Client{
		ID:             publicID,
		Name:           "public-app",
		IsConfidential: falsePtr(),
		RedirectURIs:   []string{"https://spa.test/cb"},
		AllowedScopes:  []string{"openid", "user"},
		GrantTypes:     []string{"authorization_code", "refresh_token", "implicit"},
		AutoApprove:    true,
	}))

	cc, err := cache.New(cache.Config{Driver: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	ks := jwtx.NewKeystore(ctx, jwtx.NewMemorySigningKeyStore())
	require.NoError(t, ks.EnsureBootstrap())
	issuer := jwtx.NewIssuer(testBaseURL, ks)

	c := &app.Container{
		Store:     store,
		Cache:     cc,
		Issuer:    issuer,
		Registry:  oauth2.NewRegistry(store),
		Codes:     oauth2.NewCodeStore(cc, time.Minute),
		Redirects: login.NewRedirectValidator(store, testBaseURL, nil, true),
	}
	c.Tokens = oauth2.NewGenerator(store, c.Codes, issuer)

	loginCfg := handlers.GoogleLoginConfig{Mock: true, MockUser: "mock@example.com", BaseURL: testBaseURL}
	router := httpx.NewRouter(httpx.RouterDeps{
		Readyz:         handlers.NewReadyzHandler(c),
		JWKS:           handlers.NewJWKSHandler(c),
		OIDCDiscovery:  handlers.NewOIDCDiscoveryHandler(c),
		OAuthAuthorize: handlers.NewOAuthAuthorizeHandler(c),
		OAuthToken:     handlers.NewOAuthTokenHandler(c),
		OAuthRevoke:    handlers.NewOAuthRevokeHandler(c),
		GoogleLogin:    handlers.NewGoogleLoginHandler(c, loginCfg),
		GoogleCallback: handlers.NewGoogleCallbackHandler(c, loginCfg),
		AdminClients:   handlers.NewAdminClientsHandler(c, testAdminKey),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	// no seguir redirects: queremos inspeccionar el Location
	hc := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	return &fixture{c: c, srv: srv, user: user, client: hc}
}

func (f *fixture) postToken(t *testing.T, form url.Values, basicUser, basicPass string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) mintCode(t *testing.T, scopes []string, nonce string) string {
	t.Helper()
	code, err := f.c.Codes.Record(context.Background(), f.user.ID, scopes, nonce)
	require.NoError(t, err)
	return code
}

func (f *fixture) bearerFor(t *testing.T) string {
	t.Helper()
	access, _, err := f.c.Issuer.SignAccessToken(f.user, confidentialID, []string{"openid", "user"}, "")
	require.NoError(t, err)
	return access
}
