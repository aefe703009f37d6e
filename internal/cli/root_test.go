package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purecloudlabs/purecloud-cli/internal/commands"
	"github.com/purecloudlabs/purecloud-cli/internal/output"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("PURECLOUD_NO_KEYRING", "1")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PURECLOUD_TOKEN", "")
	t.Setenv("PURECLOUD_ENVIRONMENT", "")
	t.Setenv("PURECLOUD_CLIENT_ID", "")
	t.Setenv("PURECLOUD_DEBUG", "")
	t.Chdir(t.TempDir())
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCatalogMatchesRegisteredCommands(t *testing.T) {
	root := newCLI()
	root.InitDefaultHelpCmd()

	var registered []string
	for _, cmd := range root.Commands() {
		registered = append(registered, cmd.Name())
	}
	catalog := commands.CatalogCommandNames()

	sort.Strings(registered)
	sort.Strings(catalog)
	assert.Equal(t, catalog, registered)
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flag needs an argument: --data", "--data requires a value"},
		{"unknown flag: --bogus", "Unknown option: --bogus"},
		{"unknown shorthand flag: 'z' in -z", "Unknown option: -z"},
		{"accepts 1 arg(s), received 0", "accepts 1 arg(s), received 0"},
		{"invalid argument \"x\" for \"--timeout\" flag", "invalid argument \"x\" for \"--timeout\" flag"},
		{"unknown command \"nope\" for \"purecloud\"\nRun 'purecloud --help' for usage.", "unknown command \"nope\" for \"purecloud\""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e := output.AsError(transformCobraError(errors.New(tt.in)))
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}
}

func TestTransformCobraErrorPassesThrough(t *testing.T) {
	orig := output.ErrAuth("Not authenticated")
	assert.Same(t, orig, transformCobraError(orig))
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "purecloud version")
}

func TestRunUnknownFlag(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--json", "endpoints", "--bogus")
	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, stdout, "Unknown option: --bogus")
}

func TestRunEndpointsJSON(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--json", "endpoints", "voicemail")
	require.Equal(t, 0, code, stdout)

	var resp struct {
		OK   bool `json:"ok"`
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.OK)
	require.NotEmpty(t, resp.Data)
	assert.Equal(t, "voicemail.deleteMessage", resp.Data[0].Name)
}

func TestRunCallMissingParam(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--json", "call", "users.getUser")
	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, stdout, "Missing the required parameter 'userId' when calling users.getUser")
}

func TestRunEnvShowFlag(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--quiet", "-e", "mypurecloud.de", "env")
	require.Equal(t, 0, code, stdout)

	var data map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &data))
	assert.Equal(t, "mypurecloud.de", data["environment"])
	assert.Equal(t, "api.mypurecloud.de", data["api_host"])
	assert.Equal(t, "https://login.mypurecloud.de", data["login_host"])
	assert.Equal(t, "flag", data["source"])
}

func TestRunAuthTokenNotAuthenticated(t *testing.T) {
	isolate(t)

	code, stdout, _ := runCLI(t, "--json", "auth", "token")
	assert.Equal(t, output.ExitAuth, code)
	assert.Contains(t, stdout, `"code": "auth_required"`)
}

func TestRunAuthTokenFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PURECLOUD_TOKEN", "env-token")

	code, stdout, _ := runCLI(t, "auth", "token")
	assert.Equal(t, 0, code)
	assert.Equal(t, "env-token\n", stdout)
}

func TestFormatFromFlags(t *testing.T) {
	tests := []struct {
		args []string
		want output.Format
	}{
		{nil, output.FormatAuto},
		{[]string{"--json"}, output.FormatJSON},
		{[]string{"--styled"}, output.FormatStyled},
		{[]string{"--json", "--quiet"}, output.FormatQuiet},
	}

	for _, tt := range tests {
		root := NewRootCmd()
		require.NoError(t, root.PersistentFlags().Parse(tt.args))
		assert.Equal(t, tt.want, formatFromFlags(root.PersistentFlags()), "args %v", tt.args)
	}
}
