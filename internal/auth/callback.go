package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/purecloudlabs/purecloud-cli/internal/hostutil"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
)

// DefaultCallbackTimeout is how long Wait blocks for the browser to return.
const DefaultCallbackTimeout = 5 * time.Minute

const fragmentPath = "/fragment"

// The identity provider returns the token in the URL fragment, which never
// reaches a server. This page hands it back to the CLI and then scrubs it
// from the address bar.
const callbackPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>purecloud</title></head>
<body><h1>Completing sign-in...</h1>
<script>
(function () {
  var hash = window.location.hash.replace(/^#/, "");
  history.replaceState(null, "", window.location.pathname);
  fetch("` + fragmentPath + `", {
    method: "POST",
    headers: {"Content-Type": "text/plain"},
    body: hash
  }).then(function () {
    document.body.innerHTML = "<h1>Authentication complete</h1><p>You can close this window.</p>";
  }, function () {
    document.body.innerHTML = "<h1>Authentication failed</h1><p>Return to the terminal.</p>";
  });
})();
</script>
</body></html>`

// CallbackServer receives the implicit-grant redirect on a loopback address.
type CallbackServer struct {
	addr     string
	path     string
	listener net.Listener
	server   *http.Server

	fragCh chan string
}

// NewCallbackServer prepares a server for redirectURL, which must be an
// http:// loopback URL such as http://localhost:8085/oauth2/callback.
func NewCallbackServer(redirectURL string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Scheme != "http" || !hostutil.IsLocalhost(u.Host) {
		return nil, output.ErrUsageHint(
			fmt.Sprintf("Cannot receive the login callback at %s", redirectURL),
			"Set redirect_url to an http://localhost address registered on the OAuth client",
		)
	}

	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	return &CallbackServer{
		addr:   addr,
		path:   path,
		fragCh: make(chan string, 1),
	}, nil
}

// Start begins listening. The caller must Close the server.
func (s *CallbackServer) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+s.path, s.handlePage)
	mux.HandleFunc("POST "+fragmentPath, s.handleFragment)

	s.server = &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler:           mux,
	}
	go func() { _ = s.server.Serve(listener) }()
	return nil
}

// Addr returns the address the server is listening on.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *CallbackServer) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = io.WriteString(w, callbackPage)
}

func (s *CallbackServer) handleFragment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	select {
	case s.fragCh <- string(body):
	default:
		// Only the first callback counts.
	}
	w.WriteHeader(http.StatusNoContent)
}

// Wait blocks until the browser posts the fragment, ctx is cancelled, or
// timeout elapses. A non-positive timeout uses DefaultCallbackTimeout.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (session.Location, error) {
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case fragment := <-s.fragCh:
		f := session.ParseFragment(fragment)
		if errParam := f.Extra["error"]; errParam != "" {
			msg := "OAuth error: " + errParam
			// Descriptions are form-encoded prose.
			if desc := strings.ReplaceAll(f.Extra["error_description"], "+", " "); desc != "" {
				msg += " (" + desc + ")"
			}
			return nil, output.ErrAuth(msg)
		}
		return &session.StaticLocation{Hash: fragment}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, output.ErrAuth("Authentication timeout")
	}
}

// Close shuts the server down.
func (s *CallbackServer) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
