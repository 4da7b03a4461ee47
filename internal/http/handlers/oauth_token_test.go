package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/gatejohn/internal/jwt"
)

type tokenResponse struct {
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func decodeTokens(t *testing.T, resp *http.Response) tokenResponse {
	t.Helper()
	defer resp.Body.Close()
	var tr tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	return tr
}

func TestTokenEndpoint_AuthorizationCode_Basic(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "n-1")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	resp := f.postToken(t, form, confidentialID, testSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	tr := decodeTokens(t, resp)
	require.Equal(t, "Bearer", tr.TokenType)
	require.EqualValues(t, 1200, tr.ExpiresIn)
	require.NotEmpty(t, tr.IDToken)
	require.NotEmpty(t, tr.AccessToken)
	require.NotEmpty(t, tr.RefreshToken)

	claims, err := jwtx.ParseEdDSA(tr.IDToken, f.c.Issuer.Keys, f.c.Issuer.Iss)
	require.NoError(t, err)
	require.Equal(t, "n-1", claims["nonce"])
	require.Equal(t, confidentialID, claims["azp"])
}

func TestTokenEndpoint_ClientSecretPost(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", confidentialID)
	form.Set("client_secret", testSecret)

	resp := f.postToken(t, form, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeTokens(t, resp)
}

func TestTokenEndpoint_WrongSecret(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	resp := f.postToken(t, form, confidentialID, "nope")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
}

func TestTokenEndpoint_ConfidentialRejectsNone(t *testing.T) {
	f := newFixture(t)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "whatever")
	form.Set("client_id", confidentialID) // sin secret => method "none"

	resp := f.postToken(t, form, "", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenEndpoint_PublicClientUsesNone(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", publicID)

	resp := f.postToken(t, form, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeTokens(t, resp)
}

func TestTokenEndpoint_PublicClientRejectsSecret(t *testing.T) {
	f := newFixture(t)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "whatever")

	resp := f.postToken(t, form, publicID, "anything")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenEndpoint_GrantNotEnabledForClient(t *testing.T) {
	f := newFixture(t)

	// el confidencial no tiene implicit habilitado
	form := url.Values{}
	form.Set("grant_type", "implicit")

	resp := f.postToken(t, form, confidentialID, testSecret)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "unauthorized_client", body.Error)
}

func TestTokenEndpoint_RefreshSelfRenewal(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	first := decodeTokens(t, f.postToken(t, form, confidentialID, testSecret))

	form = url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", first.RefreshToken)
	resp := f.postToken(t, form, confidentialID, testSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	second := decodeTokens(t, resp)
	require.Equal(t, first.RefreshToken, second.RefreshToken, "refresh must come back verbatim")
	require.NotEmpty(t, second.IDToken)
}

func TestTokenEndpoint_GarbageRefreshToken(t *testing.T) {
	f := newFixture(t)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", "not-a-jwt")

	resp := f.postToken(t, form, confidentialID, testSecret)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_grant", body.Error)
}

func TestTokenEndpoint_ScopeOutsideClientPolicy(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("scope", "admin,openid") // comma form, "admin" no está permitido

	resp := f.postToken(t, form, confidentialID, testSecret)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_scope", body.Error)
}

func TestTokenEndpoint_ScopeOutsidePolicySpaceForm(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	// la forma por espacios también se valida entrada por entrada:
	// "admin" no puede colarse detrás de un scope permitido
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("scope", "openid admin")

	resp := f.postToken(t, form, confidentialID, testSecret)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_scope", body.Error)
}

func TestTokenEndpoint_AllowedSpaceScopes(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid"}, "")

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("scope", "openid data")

	resp := f.postToken(t, form, confidentialID, testSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tr := decodeTokens(t, resp)

	claims, err := jwtx.ParseEdDSA(tr.AccessToken, f.c.Issuer.Keys, f.c.Issuer.Iss)
	require.NoError(t, err)
	scopeClaim, ok := claims["scope"].([]any)
	require.True(t, ok)
	require.Contains(t, scopeClaim, "openid")
	require.Contains(t, scopeClaim, "data")
	require.NotContains(t, scopeClaim, "admin")
}

func TestTokenEndpoint_UnknownClient(t *testing.T) {
	f := newFixture(t)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "whatever")

	resp := f.postToken(t, form, "ghost", "secret")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
