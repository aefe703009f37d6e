package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/purecloud-cli/internal/appctx"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
	"github.com/purecloudlabs/purecloud-cli/internal/version"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Auth & Environment",
			Commands: []CommandInfo{
				{Name: "auth", Category: "auth", Description: "Authenticate with PureCloud", Actions: []string{"login", "logout", "status", "token", "set-token"}},
				{Name: "env", Category: "auth", Description: "Show or select the environment", Actions: []string{"show", "list", "set"}},
				{Name: "config", Category: "auth", Description: "Manage configuration", Actions: []string{"show", "init", "set", "unset"}},
			},
		},
		{
			Name: "API",
			Commands: []CommandInfo{
				{Name: "call", Category: "api", Description: "Invoke a cataloged API operation"},
				{Name: "endpoints", Category: "api", Description: "List cataloged API operations"},
				{Name: "api", Category: "api", Description: "Raw API access", Actions: []string{"get", "post", "put", "patch", "delete"}},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
// Used by tests to verify catalog matches registered commands.
func CatalogCommandNames() []string {
	var names []string
	for _, cat := range commandCategories() {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available purecloud commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			return app.OK(commandCategories(),
				output.WithSummary("All available purecloud commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "purecloud --help",
						Description: "View help",
					},
				),
			)
		},
	}
}

// NewVersionCmd creates the version command. It runs without app setup.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				w := output.New(output.Options{Format: output.FormatJSON, Writer: cmd.OutOrStdout()})
				return w.OK(map[string]string{
					"version": version.Version,
					"commit":  version.Commit,
					"date":    version.Date,
				}, output.WithSummary(version.Full()))
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return err
		},
	}
}
