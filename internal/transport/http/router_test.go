package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kset/verifikator/internal/application/roster"
	"github.com/kset/verifikator/internal/config"
	"github.com/kset/verifikator/internal/domain"
	"github.com/kset/verifikator/internal/infrastructure/google"
	"github.com/kset/verifikator/internal/infrastructure/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct{ records []domain.MemberRecord }

func (s fixedSource) Fetch(ctx context.Context) ([]domain.MemberRecord, error) {
	return s.records, nil
}

// newTestStack spins up fake provider endpoints and a fully wired router
// backed by the in-memory store and a preloaded roster.
func newTestStack(t *testing.T, adminToken string) (*httptest.Server, *roster.Cache) {
	t.Helper()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			w.Write([]byte(`{"email":"a@kset.org"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(provider.Close)

	cfg := &config.Config{
		AllowedOrigins:     []string{"*"},
		AdminToken:         adminToken,
		AttemptWindow:      5 * time.Minute,
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURI:  "https://verifikator.example/oauth/callback",
		GoogleAuthURL:      provider.URL + "/auth",
		GoogleTokenURL:     provider.URL + "/token",
		GoogleUserInfoURL:  provider.URL + "/userinfo",
	}

	cache, err := roster.NewCache(fixedSource{records: []domain.MemberRecord{{
		FullName:      "Ana",
		Section:       "Računarska",
		OrgEmail:      "a@kset.org",
		PersonalEmail: "a@gmail.com",
	}}}, "06:47")
	require.NoError(t, err)
	_, err = cache.Refresh(context.Background(), true)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(cfg, &Deps{
		Attempts:  memstore.NewAttemptRepo(),
		Roster:    cache,
		Exchanger: google.NewExchanger(cfg),
	}))
	t.Cleanup(srv.Close)
	return srv, cache
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestVerifyEmailFlow(t *testing.T) {
	srv, _ := newTestStack(t, "")

	resp := postJSON(t, srv.URL+"/verify-email", `{"email":"a@gmail.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var member domain.MemberRecord
	decodeBody(t, resp, &member)
	assert.Equal(t, "Ana", member.FullName)

	resp = postJSON(t, srv.URL+"/verify-email", `{"email":"stranger@example.com"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/verify-email", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestVerifyEmailsReturnsMatchedSubset(t *testing.T) {
	srv, _ := newTestStack(t, "")

	resp := postJSON(t, srv.URL+"/verify-emails", `{"emails":["A@KSET.org","nobody@example.com"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var matches map[string]domain.MemberRecord
	decodeBody(t, resp, &matches)
	require.Len(t, matches, 1)
	assert.Equal(t, "Ana", matches["a@kset.org"].FullName)
}

func TestOAuthFlow_StartCallbackPoll(t *testing.T) {
	srv, _ := newTestStack(t, "")

	// Start: mint a link for a roster member.
	resp := postJSON(t, srv.URL+"/generate-oauth-link", `{"email":"a@gmail.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var link struct {
		OAuthURL string `json:"oauth_url"`
		State    string `json:"state"`
	}
	decodeBody(t, resp, &link)
	assert.Contains(t, link.OAuthURL, "state="+link.State)
	require.Len(t, link.State, 64)

	// Poll before the callback: still pending.
	resp, err := http.Get(fmt.Sprintf("%s/oauth/status?state=%s", srv.URL, link.State))
	require.NoError(t, err)
	var status struct {
		Status        string `json:"status"`
		ResolvedEmail string `json:"resolved_email"`
		FullName      string `json:"full_name"`
	}
	decodeBody(t, resp, &status)
	assert.Equal(t, "pending", status.Status)

	// Provider redirects the browser back; the page greets the member.
	resp, err = http.Get(fmt.Sprintf("%s/oauth/callback?code=the-code&state=%s", srv.URL, link.State))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Ana")

	// Poll after: resolved with the member attached.
	resp, err = http.Get(fmt.Sprintf("%s/oauth/status?state=%s", srv.URL, link.State))
	require.NoError(t, err)
	decodeBody(t, resp, &status)
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, "a@kset.org", status.ResolvedEmail)
	assert.Equal(t, "Ana", status.FullName)

	// Replaying the callback must not re-resolve.
	resp, err = http.Get(fmt.Sprintf("%s/oauth/callback?code=the-code&state=%s", srv.URL, link.State))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOAuthFlow_ClientChosenState(t *testing.T) {
	srv, _ := newTestStack(t, "")

	resp := postJSON(t, srv.URL+"/generate-oauth-link", `{"state":"bot-issued-state","origin":"discord"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var link struct {
		State string `json:"state"`
	}
	decodeBody(t, resp, &link)
	assert.Equal(t, "bot-issued-state", link.State)

	// Origin is mandatory when the caller picks the state.
	resp = postJSON(t, srv.URL+"/generate-oauth-link", `{"state":"another-state"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestOAuthStatus_UnknownState(t *testing.T) {
	srv, _ := newTestStack(t, "")

	resp, err := http.Get(srv.URL + "/oauth/status?state=never-issued")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/oauth/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOAuthCallback_MissingParams(t *testing.T) {
	srv, _ := newTestStack(t, "")

	resp, err := http.Get(srv.URL + "/oauth/callback?state=only-state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCacheAdminEndpoints_TokenGuard(t *testing.T) {
	srv, _ := newTestStack(t, "sekrit")

	resp := postJSON(t, srv.URL+"/refresh-cache", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/refresh-cache", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Status     string `json:"status"`
		SnapshotID string `json:"snapshot_id"`
	}
	decodeBody(t, resp, &env)
	assert.Equal(t, "refreshed", env.Status)
	assert.NotEmpty(t, env.SnapshotID)
}

func TestClearCacheMakesLookupsUnavailable(t *testing.T) {
	srv, _ := newTestStack(t, "")

	resp := postJSON(t, srv.URL+"/clear-cache", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/verify-email", `{"email":"a@gmail.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
