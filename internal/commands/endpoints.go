package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/purecloudlabs/purecloud-cli/internal/appctx"
	"github.com/purecloudlabs/purecloud-cli/internal/endpoint"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

// EndpointInfo is the listing shape of one catalog operation.
type EndpointInfo struct {
	Name     string           `json:"name"`
	Method   string           `json:"method"`
	Path     string           `json:"path"`
	Summary  string           `json:"summary,omitempty"`
	Params   []endpoint.Param `json:"params,omitempty"`
	Body     bool             `json:"body,omitempty"`
	Mutation bool             `json:"mutation"`
}

func endpointInfo(d *endpoint.Descriptor) EndpointInfo {
	return EndpointInfo{
		Name:     d.FullName(),
		Method:   d.Method,
		Path:     d.Path,
		Summary:  d.Summary,
		Params:   d.Params,
		Body:     d.Body,
		Mutation: d.IsMutation(),
	}
}

// NewEndpointsCmd creates the endpoints catalog listing command.
func NewEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints [namespace | namespace.operation]",
		Short: "List cataloged API operations",
		Long:  "List the operations purecloud call can invoke, optionally filtered to one namespace or operation.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := endpoint.LoadError(); err != nil {
				return err
			}

			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}

			if strings.Contains(filter, ".") {
				d, err := endpoint.Lookup(filter)
				if err != nil {
					return err
				}
				return app.OK(endpointInfo(d),
					output.WithSummary(fmt.Sprintf("%s %s", d.Method, d.Path)),
					output.WithBreadcrumbs(output.Breadcrumb{
						Action:      "call",
						Cmd:         "purecloud call " + d.FullName(),
						Description: "Invoke operation",
					}),
				)
			}

			descriptors := endpoint.List(filter)
			if len(descriptors) == 0 {
				return output.ErrUsageHint(
					fmt.Sprintf("Unknown namespace: %s", filter),
					"Namespaces: "+strings.Join(endpoint.Namespaces(), ", "),
				)
			}

			infos := make([]EndpointInfo, len(descriptors))
			for i, d := range descriptors {
				infos[i] = endpointInfo(d)
			}
			return app.OK(infos,
				output.WithSummary(fmt.Sprintf("%d operations", len(infos))),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "call",
					Cmd:         "purecloud call <namespace.operation> --param name=value",
					Description: "Invoke an operation",
				}),
			)
		},
	}
}
