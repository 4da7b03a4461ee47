package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
)

func (f *fixture) getPath(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.srv.URL + path)
	require.NoError(t, err)
	return resp
}

// startMockLogin arranca el flujo y devuelve el state que viaja al callback.
func (f *fixture) startMockLogin(t *testing.T, query url.Values) string {
	t.Helper()
	resp := f.getPath(t, "/login/google?"+query.Encode())
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/login/google/callback", loc.Path)

	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestGoogleLogin_RejectsForeignRedirect(t *testing.T) {
	f := newFixture(t)

	resp := f.getPath(t, "/login/google?redirect="+url.QueryEscape("https://evil.test/phish"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"), "must not redirect anywhere on rejection")
}

func TestGoogleLogin_MockFlowCreatesAndLinksUser(t *testing.T) {
	f := newFixture(t)

	q := url.Values{}
	q.Set("redirect", "https://app.test/cb")
	state := f.startMockLogin(t, q)

	resp := f.getPath(t, "/login/google/callback?state="+url.QueryEscape(state))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "https://app.test/cb", resp.Header.Get("Location"))

	// el usuario mock quedó creado y vinculado
	u, err := f.c.Store.GetUserByUsername(context.Background(), "mock@example.com")
	require.NoError(t, err)
	link, err := f.c.Store.GetLinkedGoogleAccount(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, "mock@example.com", link.Email)
}

func TestGoogleLogin_CallbackWithoutRedirectReturnsJSON(t *testing.T) {
	f := newFixture(t)

	state := f.startMockLogin(t, url.Values{})
	resp := f.getPath(t, "/login/google/callback?state="+url.QueryEscape(state))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Username string `json:"username"`
		Linked   string `json:"linked"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "mock@example.com", out.Username)
	require.Equal(t, "mock@example.com", out.Linked)
}

func TestGoogleLogin_StateIsSingleUse(t *testing.T) {
	f := newFixture(t)

	state := f.startMockLogin(t, url.Values{})
	resp := f.getPath(t, "/login/google/callback?state="+url.QueryEscape(state))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.getPath(t, "/login/google/callback?state="+url.QueryEscape(state))
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGoogleLogin_CallbackRequiresState(t *testing.T) {
	f := newFixture(t)

	resp := f.getPath(t, "/login/google/callback")
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.getPath(t, "/login/google/callback?state=never-issued")
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGoogleLogin_ImplicitTokensInFragment(t *testing.T) {
	f := newFixture(t)

	q := url.Values{}
	q.Set("redirect", "https://spa.test/cb")
	q.Set("client_id", publicID)
	q.Set("nonce", "n-implicit")
	q.Set("include_access_token", "true")
	state := f.startMockLogin(t, q)

	resp := f.getPath(t, "/login/google/callback?state="+url.QueryEscape(state))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "https://spa.test/cb#"), "tokens must travel in the fragment, got %q", loc)

	frag, err := url.ParseQuery(strings.TrimPrefix(loc, "https://spa.test/cb#"))
	require.NoError(t, err)
	require.NotEmpty(t, frag.Get("id_token"))
	require.NotEmpty(t, frag.Get("access_token"))
	require.Equal(t, "Bearer", frag.Get("token_type"))
	require.Empty(t, frag.Get("refresh_token"), "implicit never issues refresh tokens")

	claims, err := jwtx.ParseEdDSA(frag.Get("id_token"), f.c.Issuer.Keys, f.c.Issuer.Iss)
	require.NoError(t, err)
	require.Equal(t, "n-implicit", claims["nonce"])
	require.Equal(t, publicID, claims["azp"])
	require.Equal(t, "mock@example.com", claims["linked_google_account"])
}

func TestGoogleLogin_ImplicitWithoutAccessToken(t *testing.T) {
	f := newFixture(t)

	q := url.Values{}
	q.Set("redirect", "https://spa.test/cb")
	q.Set("client_id", publicID)
	state := f.startMockLogin(t, q)

	resp := f.getPath(t, "/login/google/callback?state="+url.QueryEscape(state))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc := resp.Header.Get("Location")
	frag, err := url.ParseQuery(strings.TrimPrefix(loc, "https://spa.test/cb#"))
	require.NoError(t, err)
	require.NotEmpty(t, frag.Get("id_token"))
	require.Empty(t, frag.Get("access_token"))
}
