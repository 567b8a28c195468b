package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// stepEnv lists every variable the commands read, so tests start from a
// clean slate regardless of where they run.
var stepEnv = []string{
	"GITHUB_WORKSPACE", "GITHUB_TOKEN", "GITHUB_ACTOR", "GITHUB_REPOSITORY",
	"GITHUB_SERVER_URL", "GITHUB_API_URL", "GITHUB_ACTIONS", "GITHUB_OUTPUT",
	"GHCRPUSH_CONFIG", "RUNNER_DEBUG",
	"INPUT_PASSWORD", "INPUT_USERNAME", "INPUT_TAG", "INPUT_LABELS", "INPUT_PATH",
	"INPUT_DOCKERFILE", "INPUT_CUSTOM-DOCKERFILE", "INPUT_CUSTOM_DOCKERFILE",
	"INPUT_CUSTOMDOCKERFILE", "INPUT_REPO", "INPUT_OWNER-TYPE", "INPUT_OWNER_TYPE",
	"INPUT_REGISTRY", "INPUT_ENGINE", "INPUT_MAX-PAGES", "INPUT_MAX_PAGES", "INPUT_VERIFY",
}

func clearStepEnv(t *testing.T) {
	t.Helper()
	for _, name := range stepEnv {
		t.Setenv(name, "")
	}
}

func TestRootCommand(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	assert.Equal(t, "ghcrpush", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	for _, keyword := range []string{"GHCR", "Dockerfile", "tag", "INPUT_"} {
		assert.Contains(t, cmd.Long, keyword)
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	for _, name := range []string{"publish", "lookup"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "subcommand %s", name)
		assert.Equal(t, name, strings.Fields(sub.Use)[0])
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	for _, name := range []string{"log-api-calls", "quiet", "env-file", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "q", cmd.PersistentFlags().Lookup("quiet").Shorthand)
}

func TestRootCommandHelp(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--help"})

	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "publish")
	assert.Contains(t, stdout.String(), "lookup")
}

func TestRootCommandVersion(t *testing.T) {
	t.Parallel()
	cmd := NewRootCmd()

	validVersion := cmd.Version == "dev" || strings.HasPrefix(cmd.Version, "v")
	assert.True(t, validVersion, "Expected version to be 'dev' or start with 'v', got %q", cmd.Version)

	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), cmd.Version)
}

func TestRootCommandEnvFile(t *testing.T) {
	clearStepEnv(t)

	const name = "GHCRPUSH_TEST_ENV_FILE_VALUE"
	require.NoError(t, os.Unsetenv(name))
	t.Cleanup(func() { os.Unsetenv(name) })

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(name+"=loaded\n"), 0644))

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	// lookup fails on the missing --tag after the env file has been loaded
	cmd.SetArgs([]string{"--env-file", envFile, "lookup", "acme/app"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--tag is required")
	assert.Equal(t, "loaded", os.Getenv(name))
}

func TestRootCommandMissingEnvFile(t *testing.T) {
	clearStepEnv(t)

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "lookup", "acme/app", "--tag", "v1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load env file")
}
