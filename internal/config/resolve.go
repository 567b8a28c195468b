package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mkoepf/ghcrpush/internal/engine"
	"oras.land/oras-go/v2/registry"
)

// Credentials authenticate against the registry and the GitHub API.
type Credentials struct {
	Username string
	Secret   string
}

// BuildConfig is the validated, immutable input of one publish run.
type BuildConfig struct {
	RegistryHost string
	Owner        string
	OwnerType    string
	Repo         string
	TagName      string

	Workspace        string
	BuildContextPath string
	// DockerfilePath is empty when InlineDockerfile is set.
	DockerfilePath   string
	InlineDockerfile []string

	Labels      []string
	Credentials Credentials

	SourceURL string
	APIURL    string
	Engine    string
	MaxPages  int
	Verify    bool
}

// ImageRef returns <registry>/<owner>/<repo>:<tag>. Owner and repo are
// lower-cased because OCI repository names must be.
func (b *BuildConfig) ImageRef() string {
	return fmt.Sprintf("%s/%s/%s:%s", b.RegistryHost, strings.ToLower(b.Owner), strings.ToLower(b.Repo), b.TagName)
}

// PackageName is the name of the container package on GitHub. It matches
// the repository path of ImageRef.
func (b *BuildConfig) PackageName() string {
	return strings.ToLower(b.Repo)
}

// Resolve validates all inputs and assembles the BuildConfig.
func (c *Config) Resolve() (*BuildConfig, error) {
	if err := c.Load(); err != nil {
		return nil, err
	}
	v := c.viper

	secret := v.GetString("password")
	if secret == "" {
		secret = v.GetString("github-token")
		if secret == "" {
			return nil, errorf("input password not provided and GITHUB_TOKEN environment variable not found")
		}
	}

	username := v.GetString("username")
	if username == "" {
		username = v.GetString("actor")
		if username == "" {
			return nil, errorf("input username not provided and unable to determine the current actor")
		}
	}

	tag := strings.TrimSpace(v.GetString("tag"))
	if tag == "" {
		return nil, errorf("missing tag input")
	}

	labels, err := ParseLabels(multilineValue(v.Get("labels")))
	if err != nil {
		return nil, err
	}

	workspace := v.GetString("workspace")
	if workspace == "" {
		return nil, errorf("GITHUB_WORKSPACE not defined")
	}
	workspace, err = filepath.Abs(workspace)
	if err != nil {
		return nil, errorf("invalid workspace %q: %v", workspace, err)
	}

	basePath, err := resolveWithin(workspace, workspace, v.GetString("path"), "path")
	if err != nil {
		return nil, err
	}

	var dockerfile string
	inline := SplitMultiline(v.GetString("custom-dockerfile"))
	if len(inline) == 0 {
		dockerfile, err = resolveWithin(workspace, basePath, v.GetString("dockerfile"), "dockerfile")
		if err != nil {
			return nil, err
		}
	}

	owner, repo, err := resolveRepo(v.GetString("repo"), v.GetString("repository"))
	if err != nil {
		return nil, err
	}

	ownerType := v.GetString("owner-type")
	if ownerType != "org" && ownerType != "user" {
		return nil, errorf("invalid owner type '%s': must be 'org' or 'user'", ownerType)
	}

	maxPages := v.GetInt("max-pages")
	if maxPages < 1 {
		return nil, errorf("max-pages must be at least 1, got %d", maxPages)
	}

	cfg := &BuildConfig{
		RegistryHost:     v.GetString("registry"),
		Owner:            owner,
		OwnerType:        ownerType,
		Repo:             repo,
		TagName:          tag,
		Workspace:        workspace,
		BuildContextPath: basePath,
		DockerfilePath:   dockerfile,
		InlineDockerfile: inline,
		Labels:           labels,
		Credentials: Credentials{
			Username: username,
			Secret:   secret,
		},
		SourceURL: strings.TrimSuffix(v.GetString("server-url"), "/") + "/" + owner + "/" + repo,
		APIURL:    v.GetString("api-url"),
		Engine:    v.GetString("engine"),
		MaxPages:  maxPages,
		Verify:    v.GetBool("verify"),
	}

	if _, err := registry.ParseReference(cfg.ImageRef()); err != nil {
		return nil, errorf("invalid image reference %q: %v", cfg.ImageRef(), err)
	}

	return cfg, nil
}

// ParseLabels validates NAME=VALUE labels and keeps their order.
func ParseLabels(lines []string) ([]string, error) {
	seen := make(map[string]bool, len(lines))
	labels := make([]string, 0, len(lines))

	for _, label := range lines {
		if strings.ContainsAny(label, "' \t") {
			return nil, errorf("the apostrophe character, spaces and tabs are not allowed on labels")
		}

		eq := strings.Index(label, "=")
		if eq <= 0 || eq >= len(label)-1 {
			return nil, errorf("label format must be NAME=VALUE, got %q", label)
		}

		name := label[:eq]
		if name == engine.ProvenanceLabel {
			return nil, errorf("label %q will be automatically added and cannot be overridden", engine.ProvenanceLabel)
		}
		if seen[name] {
			return nil, errorf("label %q is defined more than once", name)
		}
		seen[name] = true

		labels = append(labels, label)
	}

	return labels, nil
}

// ParseRepo splits an owner/name repository reference.
func ParseRepo(ref string) (owner, repo string, err error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 {
		return "", "", errorf("the specified repo %q is invalid: must be in format owner/name", ref)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])
	if owner == "" || repo == "" {
		return "", "", errorf("the specified repo %q is invalid: owner and name cannot be empty", ref)
	}

	return owner, repo, nil
}

// SplitMultiline splits a multi-line input into trimmed, non-empty lines.
func SplitMultiline(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func resolveRepo(input, context string) (string, string, error) {
	if input != "" {
		return ParseRepo(input)
	}
	if context == "" {
		return "", "", errorf("unable to determine the target repository: set the repo input or GITHUB_REPOSITORY")
	}
	return ParseRepo(context)
}

// resolveWithin joins rel onto base and makes sure the result stays inside root.
func resolveWithin(root, base, rel, input string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", errorf("input %s cannot be absolute", input)
	}

	p := filepath.Join(base, rel)
	r, err := filepath.Rel(root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", errorf("input %s %q escapes the workspace", input, rel)
	}

	return p, nil
}

// multilineValue normalises an input that is either a multi-line string
// (environment, flags) or a list (config file).
func multilineValue(raw any) []string {
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		return SplitMultiline(val)
	case []string:
		var lines []string
		for _, s := range val {
			lines = append(lines, SplitMultiline(s)...)
		}
		return lines
	case []any:
		var lines []string
		for _, item := range val {
			lines = append(lines, SplitMultiline(fmt.Sprint(item))...)
		}
		return lines
	default:
		return SplitMultiline(fmt.Sprint(val))
	}
}
