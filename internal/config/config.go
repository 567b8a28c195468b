package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults for optional inputs
const (
	DefaultRegistry   = "ghcr.io"
	DefaultEngine     = "docker"
	DefaultOwnerType  = "org"
	DefaultDockerfile = "Dockerfile"
	DefaultServerURL  = "https://github.com"
	DefaultMaxPages   = 20
)

// Error reports a missing or invalid input. It is always raised before any
// external action is taken.
type Error struct {
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// envBindings maps config keys to the environment variables they are read
// from. INPUT_* variables are how GitHub Actions passes step inputs; the
// first variable that is set wins.
var envBindings = map[string][]string{
	"password":          {"INPUT_PASSWORD"},
	"github-token":      {"GITHUB_TOKEN"},
	"username":          {"INPUT_USERNAME"},
	"actor":             {"GITHUB_ACTOR"},
	"tag":               {"INPUT_TAG"},
	"labels":            {"INPUT_LABELS"},
	"path":              {"INPUT_PATH"},
	"dockerfile":        {"INPUT_DOCKERFILE"},
	"custom-dockerfile": {"INPUT_CUSTOM-DOCKERFILE", "INPUT_CUSTOM_DOCKERFILE", "INPUT_CUSTOMDOCKERFILE"},
	"repo":              {"INPUT_REPO"},
	"repository":        {"GITHUB_REPOSITORY"},
	"owner-type":        {"INPUT_OWNER-TYPE", "INPUT_OWNER_TYPE"},
	"registry":          {"INPUT_REGISTRY"},
	"engine":            {"INPUT_ENGINE"},
	"max-pages":         {"INPUT_MAX-PAGES", "INPUT_MAX_PAGES"},
	"verify":            {"INPUT_VERIFY"},
	"workspace":         {"GITHUB_WORKSPACE"},
	"server-url":        {"GITHUB_SERVER_URL"},
	"api-url":           {"GITHUB_API_URL"},
}

// flagBindings maps command-line flag names to config keys.
var flagBindings = map[string]string{
	"password":          "password",
	"username":          "username",
	"tag":               "tag",
	"label":             "labels",
	"path":              "path",
	"dockerfile":        "dockerfile",
	"custom-dockerfile": "custom-dockerfile",
	"repo":              "repo",
	"owner-type":        "owner-type",
	"registry":          "registry",
	"engine":            "engine",
	"max-pages":         "max-pages",
	"verify":            "verify",
	"workspace":         "workspace",
}

// Config gathers step inputs from flags, environment variables and an
// optional YAML file.
type Config struct {
	path  string
	viper *viper.Viper
}

// New creates a Config. The YAML file named by GHCRPUSH_CONFIG is read
// when that variable is set.
func New() *Config {
	return NewWithPath(os.Getenv("GHCRPUSH_CONFIG"))
}

// NewWithPath creates a Config backed by the YAML file at path. An empty
// path means no file.
func NewWithPath(path string) *Config {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	v.SetDefault("registry", DefaultRegistry)
	v.SetDefault("engine", DefaultEngine)
	v.SetDefault("owner-type", DefaultOwnerType)
	v.SetDefault("dockerfile", DefaultDockerfile)
	v.SetDefault("server-url", DefaultServerURL)
	v.SetDefault("max-pages", DefaultMaxPages)

	return &Config{
		path:  path,
		viper: v,
	}
}

// BindFlags lets flags set on the command line take precedence over the
// environment and the config file.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagBindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := c.viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration file
func (c *Config) Load() error {
	if c.path == "" {
		return nil
	}

	// A missing file is fine - inputs then come from flags and environment
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		return nil
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", c.path, err)
	}

	return nil
}

// Set overrides a single input, mostly useful in tests.
func (c *Config) Set(key string, value any) {
	c.viper.Set(key, value)
}
