// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/purecloudlabs/purecloud-cli/internal/api"
	"github.com/purecloudlabs/purecloud-cli/internal/auth"
	"github.com/purecloudlabs/purecloud-cli/internal/config"
	"github.com/purecloudlabs/purecloud-cli/internal/endpoint"
	"github.com/purecloudlabs/purecloud-cli/internal/observability"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config    *config.Config
	Session   *session.Session
	Store     *auth.Store
	Client    *api.Client
	Auth      *auth.Manager
	Navigator *auth.BrowserNavigator
	Endpoints *endpoint.Invoker
	Output    *output.Writer
	Logger    *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool // Force ANSI styled output (even when piped)
	JQ     string

	// Connection flags, folded into config before NewApp
	Environment string
	ClientID    string
	RedirectURL string
	Timeout     time.Duration

	// Behavior flags
	Verbose   int // 0=off, 1=operations, 2=operations+requests (stacks with -v -v or -vv)
	Stats     bool
	NoBrowser bool
}

// Overrides returns the flag values that take part in config layering.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	return config.FlagOverrides{
		Environment: f.Environment,
		ClientID:    f.ClientID,
		RedirectURL: f.RedirectURL,
		Timeout:     f.Timeout,
	}
}

// NewApp creates a new App with the given configuration. clientOpts are
// applied to the API client after the config-derived ones.
func NewApp(cfg *config.Config, clientOpts ...api.Option) *App {
	// Collector always runs to gather stats; hooks control output verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, observability.NewTraceWriter())
	logger := slog.New(slog.DiscardHandler)

	sess := session.New(cfg.Environment)
	client := api.NewClient(sess, append([]api.Option{
		api.WithTimeout(cfg.Timeout()),
		api.WithHooks(hooks),
		api.WithLogger(logger),
	}, clientOpts...)...)

	store := auth.NewStore(config.GlobalConfigDir())
	navigator := auth.NewBrowserNavigator(os.Stderr, false)
	authMgr := auth.NewManager(sess, client,
		auth.WithStore(store),
		auth.WithNavigator(navigator),
		auth.WithLogger(logger),
	)

	// An explicit token wins over anything persisted.
	if token := os.Getenv("PURECLOUD_TOKEN"); token != "" {
		authMgr.SetAuthToken(token)
	}

	return &App{
		Config:    cfg,
		Session:   sess,
		Store:     store,
		Client:    client,
		Auth:      authMgr,
		Navigator: navigator,
		Endpoints: &endpoint.Invoker{Client: client, Hooks: hooks},
		Logger:    logger,
		Collector: collector,
		Hooks:     hooks,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Output: output.New(output.Options{
			Format: output.ParseFormat(cfg.Format),
			Writer: os.Stdout,
		}),
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := output.ParseFormat(a.Config.Format)
	// Order matters: specific modes first
	switch {
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.Stdout,
		JQ:     a.Flags.JQ,
	})

	a.Navigator.Out = a.Stderr
	a.Navigator.NoBrowser = a.Flags.NoBrowser

	verboseLevel := a.verboseLevel()
	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}

	if verboseLevel > 0 {
		a.Logger = slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		a.Client.SetLogger(a.Logger)
		a.Auth.SetLogger(a.Logger)
	}
}

// verboseLevel combines -v flags, the config file and PURECLOUD_DEBUG.
func (a *App) verboseLevel() int {
	level := a.Flags.Verbose
	if level == 0 && a.Config.Verbose != nil {
		level = *a.Config.Verbose
	}
	// PURECLOUD_DEBUG can be "1", "2", or "true" (treated as 2 for full debug)
	if debugEnv := os.Getenv("PURECLOUD_DEBUG"); debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if debugEnv == "true" {
			level = 2
		}
	}
	return min(max(level, 0), 2)
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		stats := a.Collector.Summary()
		opts = append(opts, output.WithMeta("stats", &stats))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Quiet output is meant for programmatic consumption
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		a.printStatsToStderr(&stats)
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// printStatsToStderr outputs a compact stats line to stderr.
func (a *App) printStatsToStderr(stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}

	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	if stats.TotalRequests == 1 {
		parts = append(parts, "1 request")
	} else if stats.TotalRequests > 1 {
		parts = append(parts, fmt.Sprintf("%d requests", stats.TotalRequests))
	}

	if stats.FailedOps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FailedOps))
	}

	fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
}

// IsInteractive returns true if the terminal supports interactive prompts.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.JQ != "" {
		return false
	}

	return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stderr.Fd())
}

// AuthorizeOptions returns the façade options derived from config.
func (a *App) AuthorizeOptions() auth.AuthorizeOptions {
	return auth.AuthorizeOptions{
		ClientID:    a.Config.ClientID,
		RedirectURL: a.Config.RedirectURL,
		Environment: a.Config.Environment,
	}
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
