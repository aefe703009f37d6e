// Package endpoint describes PureCloud API operations declaratively and turns
// them into dispatcher calls.
//
// Each operation is a Descriptor loaded from the embedded YAML catalog:
// method, path template, parameters and whether it takes a body. Build
// assembles the URL and fails before any request when a required parameter
// is missing.
package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/purecloudlabs/purecloud-cli/internal/api"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

// ParamLocation is where a parameter goes in the request.
type ParamLocation string

const (
	InPath  ParamLocation = "path"
	InQuery ParamLocation = "query"
)

// Param describes one operation parameter.
type Param struct {
	Name        string        `yaml:"name" json:"name"`
	In          ParamLocation `yaml:"in" json:"in"`
	Required    bool          `yaml:"required" json:"required"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
}

// Descriptor describes one API operation.
type Descriptor struct {
	Namespace    string  `yaml:"-"`
	Name         string  `yaml:"name"`
	Summary      string  `yaml:"summary"`
	Method       string  `yaml:"method"`
	Path         string  `yaml:"path"`
	Params       []Param `yaml:"params"`
	Body         bool    `yaml:"body"`
	BodyRequired bool    `yaml:"body_required"`
}

// FullName returns "namespace.name".
func (d *Descriptor) FullName() string {
	return d.Namespace + "." + d.Name
}

// IsMutation reports whether the operation changes server state.
func (d *Descriptor) IsMutation() bool {
	return d.Method != http.MethodGet
}

// Param returns the named parameter, or nil.
func (d *Descriptor) Param(name string) *Param {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i]
		}
	}
	return nil
}

// Build returns the fully qualified URL for d under base (for example
// "https://api.mypurecloud.com").
//
// Path parameters are path-escaped into the template. Query parameters are
// appended in descriptor order and skipped when absent. A missing required
// parameter, or an argument the operation does not accept, is a usage error.
func Build(d *Descriptor, args map[string]string, base string) (string, error) {
	if err := checkArgs(d, args); err != nil {
		return "", err
	}

	path := d.Path
	var query []string
	for _, p := range d.Params {
		v, ok := args[p.Name]
		if !ok || v == "" {
			if p.Required {
				return "", output.ErrMissingParam(p.Name, d.FullName())
			}
			continue
		}

		switch p.In {
		case InPath:
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(v))
		default:
			query = append(query, url.QueryEscape(p.Name)+"="+url.QueryEscape(v))
		}
	}

	target := strings.TrimSuffix(base, "/") + path
	if len(query) > 0 {
		target += "?" + strings.Join(query, "&")
	}
	return target, nil
}

func checkArgs(d *Descriptor, args map[string]string) error {
	var unknown []string
	for name := range args {
		if d.Param(name) == nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)

	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	hint := "This operation takes no parameters"
	if len(names) > 0 {
		hint = "Accepted: " + strings.Join(names, ", ")
	}
	return output.ErrUsageHint(
		fmt.Sprintf("Unknown parameter '%s' for %s", unknown[0], d.FullName()),
		hint,
	)
}

// OperationInfo describes an operation being invoked.
type OperationInfo struct {
	Namespace  string
	Operation  string
	Method     string
	IsMutation bool
}

// OperationHooks observes operation invocations.
type OperationHooks interface {
	OnOperationStart(ctx context.Context, op OperationInfo) context.Context
	OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration)
}

// Invoker dispatches descriptors through an API client.
type Invoker struct {
	Client *api.Client
	Hooks  OperationHooks

	// Base overrides the API base URL. Empty uses the session's API host.
	Base string
}

func (inv *Invoker) base() string {
	if inv.Base != "" {
		return inv.Base
	}
	return "https://" + inv.Client.Session().APIHost()
}

// Invoke builds the URL and sends one request.
// Build errors are returned before anything is sent.
func (inv *Invoker) Invoke(ctx context.Context, d *Descriptor, args map[string]string, body any) (*api.Response, error) {
	if body != nil && !d.Body {
		return nil, output.ErrUsageHint(
			fmt.Sprintf("%s does not take a request body", d.FullName()),
			"Remove --data",
		)
	}
	if body == nil && d.BodyRequired {
		return nil, output.ErrMissingParam("body", d.FullName())
	}

	target, err := Build(d, args, inv.base())
	if err != nil {
		return nil, err
	}

	op := OperationInfo{
		Namespace:  d.Namespace,
		Operation:  d.Name,
		Method:     d.Method,
		IsMutation: d.IsMutation(),
	}
	if inv.Hooks != nil {
		ctx = inv.Hooks.OnOperationStart(ctx, op)
	}
	start := time.Now()

	resp, err := inv.Client.Do(ctx, d.Method, target, body)

	if inv.Hooks != nil {
		inv.Hooks.OnOperationEnd(ctx, op, err, time.Since(start))
	}
	return resp, err
}

// Invoke dispatches d through client without operation hooks.
func Invoke(ctx context.Context, client *api.Client, d *Descriptor, args map[string]string, body any) (*api.Response, error) {
	inv := &Invoker{Client: client}
	return inv.Invoke(ctx, d, args, body)
}
