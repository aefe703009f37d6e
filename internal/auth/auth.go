// Package auth implements the PureCloud implicit-grant login flow.
//
// Manager owns the session token. It validates an existing token against
// users/me, persists good tokens, and otherwise sends the user to the
// identity provider. The redirect is a terminal effect performed by a
// Navigator so callers and tests can observe it without a browser.
package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/purecloudlabs/purecloud-cli/internal/api"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
)

// MePath is the "who am I" endpoint used to validate a token.
const MePath = "/api/v1/users/me"

// Outcome is the result of Authorize.
type Outcome int

const (
	// OutcomeRedirect means no valid session was found and the user was sent
	// to the identity provider.
	OutcomeRedirect Outcome = iota
	// OutcomeAuthenticated means an existing token validated.
	OutcomeAuthenticated
)

func (o Outcome) String() string {
	if o == OutcomeAuthenticated {
		return "authenticated"
	}
	return "redirect"
}

// Redirect describes a navigation performed by Authorize or Logout.
type Redirect struct {
	URL string
}

// AuthorizeOptions configures Authorize.
type AuthorizeOptions struct {
	ClientID    string
	RedirectURL string
	// State is round-tripped through the identity provider. Empty omits it.
	State string
	// Environment defaults to session.DefaultEnvironment.
	Environment string
}

// AuthorizeResult reports how Authorize ended.
type AuthorizeResult struct {
	outcome  Outcome
	redirect *Redirect
	user     *User
}

// Outcome returns whether the session validated or a redirect happened.
func (r *AuthorizeResult) Outcome() Outcome { return r.outcome }

// Authenticated reports whether an existing token validated.
func (r *AuthorizeResult) Authenticated() bool { return r.outcome == OutcomeAuthenticated }

// Redirect returns the navigation performed, or nil when authenticated.
func (r *AuthorizeResult) Redirect() *Redirect { return r.redirect }

// User returns the profile fetched during validation, or nil.
func (r *AuthorizeResult) User() *User { return r.user }

// Done calls fn once, with no arguments, if the session validated.
// After a redirect fn is never called. Authorize has already finished
// validating when it returns, so fn runs inline rather than asynchronously.
func (r *AuthorizeResult) Done(fn func()) *AuthorizeResult {
	if r.outcome == OutcomeAuthenticated && fn != nil {
		fn()
	}
	return r
}

// User is the subset of the users/me payload the CLI shows.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	State    string `json:"state,omitempty"`
}

// Manager is the authorization façade over a Session.
type Manager struct {
	session   *session.Session
	client    *api.Client
	store     TokenStore
	navigator Navigator
	logger    *slog.Logger

	onSessionExpired func(error)

	mu     sync.Mutex
	expiry time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the durable token store. Without one nothing is persisted.
func WithStore(st TokenStore) Option {
	return func(m *Manager) { m.store = st }
}

// WithNavigator sets how redirects are performed.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		if n != nil {
			m.navigator = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSessionExpiredHook registers fn to observe a stored or in-memory token
// failing validation during Authorize. The flow still falls back to a redirect.
func WithSessionExpiredHook(fn func(error)) Option {
	return func(m *Manager) { m.onSessionExpired = fn }
}

// NewManager creates a manager. client must share s.
func NewManager(s *session.Session, client *api.Client, opts ...Option) *Manager {
	m := &Manager{
		session:   s,
		client:    client,
		navigator: &RecordingNavigator{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLogger replaces the logger. Call it before Authorize or Login.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l != nil {
		m.logger = l
	}
}

// Session returns the managed session.
func (m *Manager) Session() *session.Session {
	return m.session
}

// Store returns the token store, or nil.
func (m *Manager) Store() TokenStore {
	return m.store
}

// State returns the OAuth state value captured at bootstrap, or "".
func (m *Manager) State() string {
	return m.session.State()
}

// SetEnvironment selects the region and recomputes both hosts.
func (m *Manager) SetEnvironment(env string) {
	m.session.SetEnvironment(env)
}

// SetAuthToken overwrites the session token. It is neither validated nor persisted.
func (m *Manager) SetAuthToken(token string) {
	m.session.SetToken(token)
	m.mu.Lock()
	m.expiry = time.Time{}
	m.mu.Unlock()
}

// Restore adopts the persisted token when the session has none, so a new
// process picks up an earlier login. An expired copy is deleted instead.
// It reports whether the session holds a token afterwards. Nothing is sent.
func (m *Manager) Restore() bool {
	return m.adoptCandidate()
}

// AuthToken returns the session token, or "".
func (m *Manager) AuthToken() string {
	return m.session.Token()
}

// HasAuthorizationToken reports whether a session token is present.
func (m *Manager) HasAuthorizationToken() bool {
	return m.session.HasToken()
}

// Bootstrap loads an implicit-grant callback from loc into the session and
// remembers the token lifetime for persistence.
func (m *Manager) Bootstrap(loc session.Location) session.Fragment {
	f := session.Bootstrap(m.session, loc)
	if f.HasAccessToken() {
		m.mu.Lock()
		m.expiry = time.Time{}
		if f.ExpiresIn > 0 {
			m.expiry = time.Now().Add(time.Duration(f.ExpiresIn) * time.Second)
		}
		m.mu.Unlock()
	}
	return f
}

// AuthorizeURL builds the identity provider's implicit-grant URL. Parameters
// appear in a fixed order and state is omitted when empty.
func AuthorizeURL(loginHost, clientID, redirectURL, state string) string {
	var b strings.Builder
	b.WriteString(loginHost)
	b.WriteString("/authorize?response_type=token&client_id=")
	b.WriteString(url.QueryEscape(clientID))
	b.WriteString("&redirect_uri=")
	b.WriteString(url.QueryEscape(redirectURL))
	if state != "" {
		b.WriteString("&state=")
		b.WriteString(url.QueryEscape(state))
	}
	return b.String()
}

// LogoutURL returns the identity provider's logout URL.
func LogoutURL(loginHost string) string {
	return loginHost + "/logout"
}

// Authorize validates an existing token or redirects to the identity provider.
//
// The in-memory token is preferred over the persisted copy. A candidate that
// fails validation for any reason is discarded and treated as no session.
// Errors are returned only when the redirect itself cannot be performed: an
// empty ClientID with no valid session is a usage error, not a redirect.
func (m *Manager) Authorize(ctx context.Context, opts AuthorizeOptions) (*AuthorizeResult, error) {
	m.session.SetEnvironment(opts.Environment)

	if m.adoptCandidate() {
		user, err := m.validate(ctx)
		if err == nil {
			m.persist()
			return &AuthorizeResult{outcome: OutcomeAuthenticated, user: user}, nil
		}

		m.logger.Debug("existing session rejected", "error", err)
		m.discard()
		if m.onSessionExpired != nil {
			m.onSessionExpired(err)
		}
	}

	if opts.ClientID == "" {
		return nil, output.ErrUsageHint("No OAuth client id configured",
			"Pass --client-id or set PURECLOUD_CLIENT_ID")
	}

	target := AuthorizeURL(m.session.LoginHost(), opts.ClientID, opts.RedirectURL, opts.State)
	if err := m.navigator.Navigate(ctx, target); err != nil {
		return nil, err
	}
	return &AuthorizeResult{outcome: OutcomeRedirect, redirect: &Redirect{URL: target}}, nil
}

// adoptCandidate puts the best available token into the session and reports
// whether there was one.
func (m *Manager) adoptCandidate() bool {
	if m.session.HasToken() {
		return true
	}
	if m.store == nil {
		return false
	}

	tok, err := m.store.Load()
	if err != nil || tok == nil || tok.AccessToken == "" {
		return false
	}
	if !tok.Expiry.IsZero() && !tok.Valid() {
		m.logger.Debug("persisted token expired", "expiry", tok.Expiry)
		m.deletePersisted()
		return false
	}

	m.session.SetToken(tok.AccessToken)
	m.mu.Lock()
	m.expiry = tok.Expiry
	m.mu.Unlock()
	return true
}

// validate issues a single users/me request against the current environment.
func (m *Manager) validate(ctx context.Context) (*User, error) {
	resp, err := m.client.Get(ctx, "https://"+m.session.APIHost()+MePath)
	if err != nil {
		return nil, err
	}

	var user User
	if err := resp.UnmarshalData(&user); err != nil {
		m.logger.Debug("users/me payload not decoded", "error", err)
		return &User{}, nil
	}
	return &user, nil
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}

	m.mu.Lock()
	tok := &oauth2.Token{
		AccessToken: m.session.Token(),
		TokenType:   "bearer",
		Expiry:      m.expiry,
	}
	m.mu.Unlock()

	if err := m.store.Save(tok); err != nil {
		m.logger.Warn("could not persist session token", "error", err)
	}
}

func (m *Manager) discard() {
	m.SetAuthToken("")
	m.deletePersisted()
}

func (m *Manager) deletePersisted() {
	if m.store == nil {
		return
	}
	if err := m.store.Delete(); err != nil {
		m.logger.Warn("could not delete persisted token", "error", err)
	}
}

// Logout clears the session and persisted token, then navigates to the
// identity provider's logout page.
func (m *Manager) Logout(ctx context.Context) (*Redirect, error) {
	m.discard()

	target := LogoutURL(m.session.LoginHost())
	if err := m.navigator.Navigate(ctx, target); err != nil {
		return nil, err
	}
	return &Redirect{URL: target}, nil
}

// Profile fetches users/me with the current token.
func (m *Manager) Profile(ctx context.Context) (*User, error) {
	if !m.session.HasToken() {
		return nil, output.ErrAuth("Not authenticated")
	}
	resp, err := m.client.Get(ctx, MePath)
	if err != nil {
		return nil, err
	}
	var user User
	if err := resp.UnmarshalData(&user); err != nil {
		return nil, output.ErrAPI(resp.StatusCode, "Unexpected users/me response")
	}
	return &user, nil
}

// Persist saves the current session token to the store, if any.
func (m *Manager) Persist() error {
	if m.store == nil {
		return nil
	}
	token := m.session.Token()
	if token == "" {
		return output.ErrAuth("Not authenticated")
	}
	m.mu.Lock()
	expiry := m.expiry
	m.mu.Unlock()
	return m.store.Save(&oauth2.Token{AccessToken: token, TokenType: "bearer", Expiry: expiry})
}

// Expiry returns when the current token expires, if known.
func (m *Manager) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiry
}
