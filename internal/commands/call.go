package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/purecloud-cli/internal/appctx"
	"github.com/purecloudlabs/purecloud-cli/internal/endpoint"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

// NewCallCmd creates the call command, which invokes a catalog operation.
func NewCallCmd() *cobra.Command {
	var params []string
	var data string

	cmd := &cobra.Command{
		Use:   "call <namespace.operation>",
		Short: "Invoke a cataloged API operation",
		Long: `Invoke an operation from the endpoint catalog by name.

Path and query parameters are passed with --param name=value. A missing
required parameter is reported before any request is sent.

Examples:
  purecloud call users.getMe
  purecloud call users.getUser --param userId=abc --param expand=presence
  purecloud call contentmanagement.postQuery --data '{"query":"invoice"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			d, err := endpoint.Lookup(args[0])
			if err != nil {
				return err
			}
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			body, err := parseData(data)
			if err != nil {
				return err
			}

			app.Auth.Restore()

			resp, err := app.Endpoints.Invoke(cmd.Context(), d, values, body)
			if err != nil {
				return err
			}

			payload := resp.Data
			if len(payload) == 0 {
				payload = json.RawMessage("{}")
			}
			return app.OK(payload,
				output.WithSummary(fmt.Sprintf("%s: %s", d.FullName(), apiSummary(payload))),
			)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Operation parameter as name=value (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")

	return cmd
}

// parseParams turns name=value pairs into an argument map.
func parseParams(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, output.ErrUsageHint(
				fmt.Sprintf("Invalid parameter %q", pair),
				"Use --param name=value",
			)
		}
		if _, dup := values[name]; dup {
			return nil, output.ErrUsage(fmt.Sprintf("Parameter '%s' given more than once", name))
		}
		values[name] = value
	}
	return values, nil
}
