package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/purecloud-cli/internal/appctx"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

// NewAPICmd creates the api command for raw API access.
func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <verb> <path>",
		Short: "Raw API access",
		Long: `Make raw requests to any PureCloud endpoint. Useful for operations not
covered by the endpoint catalog.

Paths are resolved against the current environment's API host when the
request is sent. A path without an /api/ prefix gets /api/v1 prepended.`,
	}

	cmd.AddCommand(
		newAPIVerbCmd(http.MethodGet, false),
		newAPIVerbCmd(http.MethodPost, true),
		newAPIVerbCmd(http.MethodPut, true),
		newAPIVerbCmd(http.MethodPatch, true),
		newAPIVerbCmd(http.MethodDelete, false),
	)

	return cmd
}

func newAPIVerbCmd(method string, requiresData bool) *cobra.Command {
	var data string
	verb := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   verb + " <path>",
		Short: method + " request to API",
		Long:  fmt.Sprintf("Make a raw %s request to any PureCloud API endpoint.", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if requiresData && data == "" {
				return output.ErrUsage("--data is required")
			}
			body, err := parseData(data)
			if err != nil {
				return err
			}

			app.Auth.Restore()

			path := parsePath(args[0])
			resp, err := app.Client.Do(cmd.Context(), method, path, body)
			if err != nil {
				return err
			}

			// 204 No Content
			payload := resp.Data
			if len(payload) == 0 {
				payload = json.RawMessage("{}")
			}

			summary := apiSummary(payload)
			if method != http.MethodGet {
				summary = fmt.Sprintf("%s %s: %s", method, path, summary)
			}
			return app.OK(payload, output.WithSummary(summary))
		},
	}

	if method != http.MethodGet && method != http.MethodDelete {
		usage := "JSON request body"
		if requiresData {
			usage += " (required)"
		}
		cmd.Flags().StringVarP(&data, "data", "d", "", usage)
	}

	return cmd
}

// parseData decodes a --data flag value. Empty means no body.
func parseData(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return nil, output.ErrUsageHint(
			"Invalid JSON data",
			fmt.Sprintf("JSON parse error: %v", err),
		)
	}
	return body, nil
}

// parsePath normalizes an API path.
// Absolute URLs pass through; relative paths get a leading slash and,
// when they do not already name an API version, the /api/v1 prefix.
func parsePath(input string) string {
	if strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://") {
		return input
	}

	if !strings.HasPrefix(input, "/") {
		input = "/" + input
	}
	if !strings.HasPrefix(input, "/api/") {
		input = "/api/v1" + input
	}
	return input
}

// apiSummary generates a summary from the API response.
func apiSummary(data []byte) string {
	var arr []any
	if err := json.Unmarshal(data, &arr); err == nil {
		return fmt.Sprintf("%d items", len(arr))
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return "API response"
	}

	// PureCloud list responses wrap results in "entities"
	if entities, ok := obj["entities"].([]any); ok {
		if total, ok := obj["total"].(float64); ok {
			return fmt.Sprintf("%d of %d items", len(entities), int(total))
		}
		return fmt.Sprintf("%d items", len(entities))
	}

	title := ""
	for _, key := range []string{"name", "title", "subject", "id"} {
		if v, ok := obj[key].(string); ok && v != "" {
			title = v
			break
		}
	}

	if len(title) > 50 {
		title = title[:47] + "..."
	}
	if title != "" {
		return title
	}
	return "API response"
}
