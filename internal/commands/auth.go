// Package commands implements the CLI commands.
package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/purecloudlabs/purecloud-cli/internal/appctx"
	"github.com/purecloudlabs/purecloud-cli/internal/auth"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/prompt"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Manage PureCloud authentication including login, logout, and status.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthTokenCmd(),
		newAuthSetTokenCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var state string
	var force bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with PureCloud",
		Long: `Authenticate with the implicit grant.

An existing session is reused when it still validates against users/me.
Otherwise the browser is sent to the login host and the CLI waits on the
configured loopback redirect URL for the token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			opts := app.AuthorizeOptions()
			if opts.ClientID == "" && app.IsInteractive() {
				id, err := prompt.InputRequired("PureCloud OAuth client id", "implicit grant client id")
				if err != nil {
					return err
				}
				opts.ClientID = id
			}
			if state == "" {
				state = uuid.NewString()
			}
			opts.State = state

			fmt.Fprintf(app.Stderr, "Starting PureCloud authentication (%s)...\n", app.Session.Environment())

			res, err := app.Auth.Login(cmd.Context(), auth.LoginOptions{
				AuthorizeOptions: opts,
				Force:            force,
				Timeout:          wait,
			})
			if err != nil {
				return err
			}

			summary := "Authentication successful"
			if res.Reused {
				summary = "Already authenticated"
			}
			if res.User != nil && res.User.Name != "" {
				summary += fmt.Sprintf(" as %s", res.User.Name)
			}

			return app.OK(map[string]any{
				"status":      "logged_in",
				"environment": app.Session.Environment(),
				"reused":      res.Reused,
				"user":        res.User,
			}, output.WithSummary(summary))
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "OAuth state value (default: random)")
	cmd.Flags().BoolVar(&force, "force", false, "Discard any existing session first")
	cmd.Flags().DurationVar(&wait, "wait", auth.DefaultCallbackTimeout, "How long to wait for the browser callback")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  "Discard the session token and its persisted copy, then open the identity provider's logout page.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			redirect, err := app.Auth.Logout(cmd.Context())
			if err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status":   "logged_out",
				"redirect": redirect.URL,
			}, output.WithSummary("Successfully logged out"))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display where the token comes from and whether it still validates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			status := map[string]any{
				"authenticated": false,
				"environment":   app.Session.Environment(),
				"storage":       app.Store.Location(),
				"keyring":       app.Store.UsingKeyring(),
			}

			var expiry time.Time
			switch {
			case os.Getenv("PURECLOUD_TOKEN") != "":
				status["source"] = "PURECLOUD_TOKEN"
			case app.Auth.HasAuthorizationToken():
				status["source"] = "session"
			default:
				tok, err := app.Store.Load()
				if err != nil || tok == nil || tok.AccessToken == "" {
					return app.OK(status, output.WithSummary("Not authenticated"))
				}
				app.Auth.SetAuthToken(tok.AccessToken)
				status["source"] = "stored"
				expiry = tok.Expiry
			}

			if !expiry.IsZero() {
				expiresIn := time.Until(expiry)
				status["expires_in"] = expiresIn.Round(time.Second).String()
				status["expired"] = expiresIn < 0
			}

			user, err := app.Auth.Profile(cmd.Context())
			if err != nil {
				if output.AsError(err).Code != output.CodeAuth {
					return err
				}
				status["error"] = output.AsError(err).Message
				return app.OK(status, output.WithSummary("Session is no longer valid"))
			}

			status["authenticated"] = true
			status["user"] = user
			return app.OK(status, output.WithSummary(fmt.Sprintf("Authenticated as %s", displayName(user))))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the auth token",
		Long: `Print the current access token to stdout for use with other tools.

If PURECLOUD_TOKEN is set it is returned directly. Otherwise the persisted
token is used. The token is not validated.

Examples:
  curl -H "Authorization: bearer $(purecloud auth token)" ...

Output modes:
  purecloud auth token           # Raw token (default, for shell substitution)
  purecloud auth token --json    # JSON envelope with token in data field`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			token := app.Auth.AuthToken()
			if token == "" {
				if tok, err := app.Store.Load(); err == nil && tok != nil {
					token = tok.AccessToken
				}
			}
			if token == "" {
				return output.ErrAuth("Not authenticated")
			}

			// Raw output by default so $(purecloud auth token) works.
			if app.Flags.JSON || app.Flags.JQ != "" {
				return app.OK(map[string]string{"token": token})
			}
			fmt.Fprintln(app.Stdout, token)
			return nil
		},
	}
}

func newAuthSetTokenCmd() *cobra.Command {
	var skipValidation bool

	cmd := &cobra.Command{
		Use:   "set-token <token>",
		Short: "Store an access token obtained elsewhere",
		Long:  "Set the session token, validate it against users/me, and persist it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			app.Auth.SetAuthToken(args[0])

			var user *auth.User
			if !skipValidation {
				u, err := app.Auth.Profile(cmd.Context())
				if err != nil {
					app.Auth.SetAuthToken("")
					return err
				}
				user = u
			}

			if err := app.Auth.Persist(); err != nil {
				return err
			}

			summary := "Token stored"
			if user != nil {
				summary = fmt.Sprintf("Token stored for %s", displayName(user))
			}
			return app.OK(map[string]any{
				"status":    "stored",
				"validated": !skipValidation,
				"storage":   app.Store.Location(),
				"user":      user,
			}, output.WithSummary(summary))
		},
	}

	cmd.Flags().BoolVar(&skipValidation, "no-validate", false, "Store without calling users/me")

	return cmd
}

func displayName(u *auth.User) string {
	switch {
	case u == nil:
		return "unknown user"
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	case u.ID != "":
		return u.ID
	default:
		return "unknown user"
	}
}
