package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/purecloudlabs/purecloud-cli/internal/api"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
)

// memStore is an in-memory TokenStore.
type memStore struct {
	mu      sync.Mutex
	tok     *oauth2.Token
	saves   int
	deletes int
	loadErr error
	delErr  error
}

func (s *memStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.tok == nil {
		return nil, &StoreError{Operation: "load", Message: "token not found"}
	}
	return s.tok, nil
}

func (s *memStore) Save(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.tok = tok
	return nil
}

func (s *memStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	s.tok = nil
	return s.delErr
}

// rewriteTransport sends every request to target while keeping the path
// and the original Host header.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

type meServer struct {
	*httptest.Server
	hits       atomic.Int32
	lastAuth   atomic.Value
	lastHost   atomic.Value
	validToken string
}

func newMeServer(t *testing.T, validToken string) *meServer {
	t.Helper()
	ms := &meServer{validToken: validToken}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.hits.Add(1)
		ms.lastAuth.Store(r.Header.Get("Authorization"))
		ms.lastHost.Store(r.Host)
		if r.URL.Path != MePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "bearer "+ms.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid login credentials."}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"u-1","name":"Ada Lovelace","email":"ada@example.com","username":"ada@example.com"}`)
	}))
	t.Cleanup(ms.Close)
	return ms
}

func newTestManager(t *testing.T, srv *meServer, opts ...Option) (*Manager, *session.Session, *RecordingNavigator) {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	s := session.New("")
	client := api.NewClient(s, api.WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))
	nav := &RecordingNavigator{}
	all := append([]Option{WithNavigator(nav)}, opts...)
	return NewManager(s, client, all...), s, nav
}

func TestAuthorizeWithoutCandidateRedirects(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, nav := newTestManager(t, srv)

	res, err := m.Authorize(context.Background(), AuthorizeOptions{
		ClientID:    "my client",
		RedirectURL: "http://localhost:8085/oauth2/callback",
		Environment: "mypurecloud.ie",
	})
	require.NoError(t, err)

	want := "https://login.mypurecloud.ie/authorize?response_type=token&client_id=my+client" +
		"&redirect_uri=http%3A%2F%2Flocalhost%3A8085%2Foauth2%2Fcallback"
	assert.Equal(t, OutcomeRedirect, res.Outcome())
	assert.Equal(t, want, res.Redirect().URL)
	assert.Equal(t, []string{want}, nav.URLs())
	assert.NotContains(t, nav.Last(), "state=")
	assert.Equal(t, int32(0), srv.hits.Load(), "no validation request without a candidate")

	called := false
	res.Done(func() { called = true })
	assert.False(t, called)
}

func TestAuthorizeIncludesState(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, nav := newTestManager(t, srv)

	_, err := m.Authorize(context.Background(), AuthorizeOptions{
		ClientID:    "cid",
		RedirectURL: "http://localhost/cb",
		State:       "XYZ",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(nav.Last(), "https://login.mypurecloud.com/authorize?"))
	assert.True(t, strings.HasSuffix(nav.Last(), "&state=XYZ"))
}

func TestAuthorizeDefaultsEnvironment(t *testing.T) {
	srv := newMeServer(t, "good")
	m, s, _ := newTestManager(t, srv)
	s.SetEnvironment("inindca.com")

	_, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid", RedirectURL: "http://localhost/cb"})
	require.NoError(t, err)
	assert.Equal(t, session.DefaultEnvironment, s.Environment())
}

func TestAuthorizeValidatesInMemoryToken(t *testing.T) {
	srv := newMeServer(t, "good")
	store := &memStore{}
	m, _, nav := newTestManager(t, srv, WithStore(store))
	m.SetAuthToken("good")

	res, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid", RedirectURL: "http://localhost/cb"})
	require.NoError(t, err)

	calls := 0
	res.Done(func() { calls++ })
	assert.Equal(t, 1, calls)
	assert.True(t, res.Authenticated())
	assert.Nil(t, res.Redirect())
	assert.Equal(t, "Ada Lovelace", res.User().Name)
	assert.Empty(t, nav.URLs())

	assert.Equal(t, int32(1), srv.hits.Load())
	assert.Equal(t, "bearer good", srv.lastAuth.Load())
	assert.Equal(t, "api.mypurecloud.com", srv.lastHost.Load())

	require.NotNil(t, store.tok)
	assert.Equal(t, "good", store.tok.AccessToken)
	assert.Equal(t, 1, store.saves)
}

func TestAuthorizePrefersInMemoryTokenOverStored(t *testing.T) {
	srv := newMeServer(t, "memory")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stored"}}
	m, _, _ := newTestManager(t, srv, WithStore(store))
	m.SetAuthToken("memory")

	res, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid"})
	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.Equal(t, "bearer memory", srv.lastAuth.Load())
}

func TestAuthorizeUsesStoredToken(t *testing.T) {
	srv := newMeServer(t, "stored")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}}
	m, _, _ := newTestManager(t, srv, WithStore(store))

	res, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid"})
	require.NoError(t, err)
	assert.True(t, res.Authenticated())
	assert.Equal(t, "stored", m.AuthToken())
}

func TestAuthorizeSkipsExpiredStoredToken(t *testing.T) {
	srv := newMeServer(t, "stored")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(-time.Hour)}}
	m, _, nav := newTestManager(t, srv, WithStore(store))

	res, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid", RedirectURL: "http://localhost/cb"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, res.Outcome())
	assert.Equal(t, int32(0), srv.hits.Load())
	assert.Nil(t, store.tok)
	assert.Len(t, nav.URLs(), 1)
}

func TestAuthorizeInvalidTokenFallsBackToRedirect(t *testing.T) {
	srv := newMeServer(t, "good")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stale"}}

	var expired []error
	m, _, nav := newTestManager(t, srv, WithStore(store), WithSessionExpiredHook(func(err error) {
		expired = append(expired, err)
	}))

	res, err := m.Authorize(context.Background(), AuthorizeOptions{
		ClientID:    "cid",
		RedirectURL: "http://localhost/cb",
		State:       "s1",
	})
	require.NoError(t, err)

	called := false
	res.Done(func() { called = true })
	assert.False(t, called)
	assert.Equal(t, OutcomeRedirect, res.Outcome())
	assert.Contains(t, nav.Last(), "&state=s1")

	assert.False(t, m.HasAuthorizationToken())
	assert.Nil(t, store.tok, "stale persisted copy is discarded")
	require.Len(t, expired, 1)
	assert.Equal(t, output.CodeAuth, output.AsError(expired[0]).Code)
}

func TestAuthorizeNetworkFailureFallsBackToRedirect(t *testing.T) {
	s := session.New("")
	client := api.NewClient(s, api.WithHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}))
	nav := &RecordingNavigator{}
	m := NewManager(s, client, WithNavigator(nav))
	m.SetAuthToken("tok")

	res, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid", RedirectURL: "http://localhost/cb"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRedirect, res.Outcome())
	assert.Len(t, nav.URLs(), 1)
}

func TestAuthorizeRequiresClientIDToRedirect(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, nav := newTestManager(t, srv)

	_, err := m.Authorize(context.Background(), AuthorizeOptions{RedirectURL: "http://localhost/cb"})
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
	assert.Empty(t, nav.URLs())
}

func TestAuthorizeNavigatorError(t *testing.T) {
	srv := newMeServer(t, "good")
	boom := errors.New("no display")
	m, _, _ := newTestManager(t, srv, WithNavigator(NavigatorFunc(func(context.Context, string) error {
		return boom
	})))

	_, err := m.Authorize(context.Background(), AuthorizeOptions{ClientID: "cid"})
	assert.ErrorIs(t, err, boom)
}

func TestLogout(t *testing.T) {
	srv := newMeServer(t, "good")
	store := &memStore{tok: &oauth2.Token{AccessToken: "good"}}
	m, _, nav := newTestManager(t, srv, WithStore(store))
	m.SetEnvironment("mypurecloud.de")
	m.SetAuthToken("good")

	redirect, err := m.Logout(context.Background())
	require.NoError(t, err)

	assert.False(t, m.HasAuthorizationToken())
	assert.Empty(t, m.AuthToken())
	assert.Nil(t, store.tok)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, "https://login.mypurecloud.de/logout", redirect.URL)
	assert.Equal(t, []string{"https://login.mypurecloud.de/logout"}, nav.URLs())
}

func TestLogoutNavigatesEvenWhenDeleteFails(t *testing.T) {
	srv := newMeServer(t, "good")
	store := &memStore{delErr: errors.New("keyring locked")}
	m, _, nav := newTestManager(t, srv, WithStore(store))

	_, err := m.Logout(context.Background())
	require.NoError(t, err)
	assert.Len(t, nav.URLs(), 1)
}

func TestLogoutWithoutStore(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, nav := newTestManager(t, srv)
	m.SetAuthToken("x")

	_, err := m.Logout(context.Background())
	require.NoError(t, err)
	assert.False(t, m.HasAuthorizationToken())
	assert.Equal(t, "https://login.mypurecloud.com/logout", nav.Last())
}

func TestTokenAccessors(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, _ := newTestManager(t, srv)

	assert.False(t, m.HasAuthorizationToken())
	m.SetAuthToken("abc")
	assert.True(t, m.HasAuthorizationToken())
	assert.Equal(t, "abc", m.AuthToken())
}

func TestBootstrapRecordsExpiry(t *testing.T) {
	srv := newMeServer(t, "T")
	store := &memStore{}
	m, _, _ := newTestManager(t, srv, WithStore(store))

	f := m.Bootstrap(&session.StaticLocation{Hash: "access_token=T&expires_in=3600&state=S"})
	assert.True(t, f.HasAccessToken())
	assert.Equal(t, "S", m.State())
	assert.WithinDuration(t, time.Now().Add(time.Hour), m.Expiry(), time.Minute)

	require.NoError(t, m.Persist())
	assert.WithinDuration(t, time.Now().Add(time.Hour), store.tok.Expiry, time.Minute)
}

func TestProfile(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, _ := newTestManager(t, srv)

	_, err := m.Profile(context.Background())
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, output.AsError(err).Code)

	m.SetAuthToken("good")
	user, err := m.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
}

func TestAuthorizeURLEscaping(t *testing.T) {
	got := AuthorizeURL("https://login.mypurecloud.com", "a&b", "http://x/?q=1", "s t")
	assert.Equal(t,
		"https://login.mypurecloud.com/authorize?response_type=token&client_id=a%26b&redirect_uri=http%3A%2F%2Fx%2F%3Fq%3D1&state=s+t",
		got)
}

func TestLoginViaCallback(t *testing.T) {
	srv := newMeServer(t, "fresh")
	store := &memStore{}
	port := freePort(t)
	redirectURL := "http://127.0.0.1:" + strconv.Itoa(port) + "/oauth2/callback"

	browser := NavigatorFunc(func(ctx context.Context, authURL string) error {
		go func() {
			resp, err := http.Post("http://127.0.0.1:"+strconv.Itoa(port)+"/fragment", "text/plain",
				strings.NewReader("access_token=fresh&token_type=bearer&expires_in=600&state=abc"))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	})
	m, _, _ := newTestManager(t, srv, WithStore(store), WithNavigator(browser))

	res, err := m.Login(context.Background(), LoginOptions{
		AuthorizeOptions: AuthorizeOptions{ClientID: "cid", RedirectURL: redirectURL, State: "abc"},
		Timeout:          5 * time.Second,
	})
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Equal(t, "Ada Lovelace", res.User.Name)
	assert.Equal(t, "fresh", m.AuthToken())
	require.NotNil(t, store.tok)
	assert.Equal(t, "fresh", store.tok.AccessToken)
}

func TestLoginRejectsStateMismatch(t *testing.T) {
	srv := newMeServer(t, "fresh")
	port := freePort(t)
	redirectURL := "http://127.0.0.1:" + strconv.Itoa(port) + "/cb"

	browser := NavigatorFunc(func(ctx context.Context, authURL string) error {
		go func() {
			resp, err := http.Post("http://127.0.0.1:"+strconv.Itoa(port)+"/fragment", "text/plain",
				strings.NewReader("access_token=fresh&state=other"))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	})
	m, _, _ := newTestManager(t, srv, WithNavigator(browser))

	_, err := m.Login(context.Background(), LoginOptions{
		AuthorizeOptions: AuthorizeOptions{ClientID: "cid", RedirectURL: redirectURL, State: "abc"},
		Timeout:          5 * time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "State mismatch")
	assert.False(t, m.HasAuthorizationToken())
}

func TestLoginReusesValidSession(t *testing.T) {
	srv := newMeServer(t, "good")
	port := freePort(t)
	m, _, nav := newTestManager(t, srv)
	m.SetAuthToken("good")

	res, err := m.Login(context.Background(), LoginOptions{
		AuthorizeOptions: AuthorizeOptions{ClientID: "cid", RedirectURL: "http://127.0.0.1:" + strconv.Itoa(port) + "/cb"},
	})
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Empty(t, nav.URLs())
}

func TestLoginRejectsRemoteRedirect(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, _ := newTestManager(t, srv)

	_, err := m.Login(context.Background(), LoginOptions{
		AuthorizeOptions: AuthorizeOptions{ClientID: "cid", RedirectURL: "https://apps.mypurecloud.com/cb"},
	})
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRestoreAdoptsStoredToken(t *testing.T) {
	srv := newMeServer(t, "stored")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}}
	m, _, nav := newTestManager(t, srv, WithStore(store))

	assert.True(t, m.Restore())
	assert.Equal(t, "stored", m.AuthToken())
	assert.Equal(t, int32(0), srv.hits.Load(), "restore does not validate")
	assert.Empty(t, nav.URLs())
}

func TestRestoreKeepsSessionToken(t *testing.T) {
	srv := newMeServer(t, "good")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stored"}}
	m, _, _ := newTestManager(t, srv, WithStore(store))
	m.SetAuthToken("memory")

	assert.True(t, m.Restore())
	assert.Equal(t, "memory", m.AuthToken())
}

func TestRestoreDropsExpiredStoredToken(t *testing.T) {
	srv := newMeServer(t, "stored")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(-time.Hour)}}
	m, _, _ := newTestManager(t, srv, WithStore(store))

	assert.False(t, m.Restore())
	assert.False(t, m.HasAuthorizationToken())
	assert.Nil(t, store.tok)
}

func TestRestoreWithoutStore(t *testing.T) {
	srv := newMeServer(t, "good")
	m, _, _ := newTestManager(t, srv)

	assert.False(t, m.Restore())
}
