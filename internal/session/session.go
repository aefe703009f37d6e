// Package session holds the bearer token, OAuth state value and environment
// selector shared by the authorization manager and the API client.
package session

import "sync"

// DefaultEnvironment is the public PureCloud region used when none is given.
const DefaultEnvironment = "mypurecloud.com"

// Environments lists the regions known to the CLI. Any other value is still
// accepted by SetEnvironment.
var Environments = []string{
	"mypurecloud.com",
	"mypurecloud.ie",
	"mypurecloud.de",
	"mypurecloud.com.au",
	"mypurecloud.jp",
	"inindca.com",
	"ininsca.com",
}

// Session is the process-wide authentication state for one user.
// It is safe for concurrent use.
type Session struct {
	mu sync.RWMutex

	token       string
	state       string
	environment string
	apiHost     string
	loginHost   string
}

// New returns a session bound to env, or DefaultEnvironment if env is empty.
func New(env string) *Session {
	s := &Session{}
	s.SetEnvironment(env)
	return s
}

// SetEnvironment stores env and recomputes both derived hosts together.
func (s *Session) SetEnvironment(env string) {
	env = normalizeEnvironment(env)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.environment = env
	s.apiHost = "api." + env
	s.loginHost = "https://login." + env
}

// Environment returns the current environment selector.
func (s *Session) Environment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.environment
}

// Hosts returns the API host and identity-provider host as one consistent pair.
func (s *Session) Hosts() (apiHost, loginHost string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiHost, s.loginHost
}

// APIHost returns "api." + environment.
func (s *Session) APIHost() string {
	api, _ := s.Hosts()
	return api
}

// LoginHost returns "https://login." + environment.
func (s *Session) LoginHost() string {
	_, login := s.Hosts()
	return login
}

// Token returns the bearer token, or "" when absent.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken overwrites the bearer token. An empty string clears it.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// HasToken reports whether a bearer token is present.
func (s *Session) HasToken() bool {
	return s.Token() != ""
}

// State returns the OAuth state value captured by Bootstrap, or "".
func (s *Session) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func normalizeEnvironment(env string) string {
	if env == "" {
		return DefaultEnvironment
	}
	return env
}
