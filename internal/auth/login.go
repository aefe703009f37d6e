package auth

import (
	"context"
	"time"

	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

// LoginOptions configures the interactive login flow.
type LoginOptions struct {
	AuthorizeOptions

	// Force discards any existing session before authorizing.
	Force bool

	// Timeout bounds the wait for the browser callback.
	Timeout time.Duration
}

// LoginResult reports the outcome of Login.
type LoginResult struct {
	User *User
	// Reused is true when an existing session validated and no browser
	// round trip happened.
	Reused bool
}

// Login runs Authorize and, when it redirects, receives the callback on a
// loopback server, bootstraps the session from it and validates the token.
func (m *Manager) Login(ctx context.Context, opts LoginOptions) (*LoginResult, error) {
	if opts.Force {
		m.discard()
	}

	srv, err := NewCallbackServer(opts.RedirectURL)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = srv.Close() }()

	res, err := m.Authorize(ctx, opts.AuthorizeOptions)
	if err != nil {
		return nil, err
	}
	if res.Authenticated() {
		return &LoginResult{User: res.User(), Reused: true}, nil
	}

	loc, err := srv.Wait(ctx, opts.Timeout)
	if err != nil {
		return nil, err
	}

	f := m.Bootstrap(loc)
	if !f.HasAccessToken() {
		return nil, output.ErrAuth("Login callback did not include an access token")
	}
	if opts.State != "" && m.State() != opts.State {
		m.discard()
		return nil, output.ErrAuth("State mismatch: login callback was not for this request")
	}

	user, err := m.validate(ctx)
	if err != nil {
		m.discard()
		return nil, err
	}
	m.persist()

	return &LoginResult{User: user}, nil
}
