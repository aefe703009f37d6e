package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/purecloud-cli/internal/appctx"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/prompt"
	"github.com/purecloudlabs/purecloud-cli/internal/session"
)

// NewEnvCmd creates the env command group.
func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show or select the PureCloud environment",
		Long: `The environment selects the region: requests go to api.<environment> and
logins to login.<environment>. The token is kept when the environment changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvShow(cmd)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the current environment and hosts",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEnvShow(cmd)
			},
		},
		newEnvListCmd(),
		newEnvSetCmd(),
	)

	return cmd
}

func runEnvShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())

	apiHost, loginHost := app.Session.Hosts()
	source := app.Config.Sources["environment"]
	if source == "" {
		source = "default"
	}

	return app.OK(map[string]any{
		"environment": app.Session.Environment(),
		"api_host":    apiHost,
		"login_host":  loginHost,
		"source":      source,
	}, output.WithSummary(fmt.Sprintf("Environment: %s", app.Session.Environment())))
}

func newEnvListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			current := app.Session.Environment()

			envs := make([]map[string]any, 0, len(session.Environments))
			for _, env := range session.Environments {
				envs = append(envs, map[string]any{
					"environment": env,
					"api_host":    "api." + env,
					"current":     env == current,
				})
			}

			return app.OK(envs, output.WithSummary(fmt.Sprintf("%d environments", len(envs))))
		},
	}
}

func newEnvSetCmd() *cobra.Command {
	var custom bool

	cmd := &cobra.Command{
		Use:   "set [environment]",
		Short: "Save the default environment",
		Long:  "Save the environment to the global config. Without an argument an interactive picker is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			var env string
			switch {
			case len(args) == 1:
				env = strings.TrimSpace(strings.ToLower(args[0]))
			case app.IsInteractive():
				options := make([]prompt.Option, len(session.Environments))
				for i, e := range session.Environments {
					options[i] = prompt.Option{Value: e, Label: e}
				}
				selected, err := prompt.Select("PureCloud environment", options, app.Session.Environment())
				if err != nil {
					return err
				}
				env = selected
			default:
				return output.ErrUsageHint("Environment required", "Run: purecloud env list")
			}

			if env == "" {
				return output.ErrUsage("Environment required")
			}
			if !custom && !slices.Contains(session.Environments, env) {
				return output.ErrUsageHint(
					fmt.Sprintf("Unknown environment %q", env),
					"Known: "+strings.Join(session.Environments, ", ")+" (or pass --custom)",
				)
			}

			configPath, _ := configPathFor(true)
			if err := updateConfigFile(configPath, func(data map[string]any) { data["environment"] = env }); err != nil {
				return err
			}
			app.Auth.SetEnvironment(env)

			return app.OK(map[string]any{
				"environment": env,
				"api_host":    app.Session.APIHost(),
				"login_host":  app.Session.LoginHost(),
				"path":        configPath,
			}, output.WithSummary(fmt.Sprintf("Environment set to %s", env)))
		},
	}

	cmd.Flags().BoolVar(&custom, "custom", false, "Accept an environment that is not in the known list")

	return cmd
}
