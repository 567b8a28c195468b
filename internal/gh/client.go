package gh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v58/github"
	"github.com/mkoepf/ghcrpush/internal/logging"
)

// PackageTypeContainer is the GitHub packages API type for OCI images.
const PackageTypeContainer = "container"

// Client wraps the GitHub API client
type Client struct {
	client *github.Client
	token  string
}

// PackageVersionInfo is one version of a container package as reported by
// the GitHub packages API.
type PackageVersionInfo struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"created_at"`
}

// HasTag reports whether the version carries the given tag.
func (v PackageVersionInfo) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GetToken retrieves the GitHub token from the GITHUB_TOKEN environment variable
func GetToken() (string, error) {
	token, exists := os.LookupEnv("GITHUB_TOKEN")
	if !exists {
		return "", fmt.Errorf("GITHUB_TOKEN environment variable not set")
	}

	if token == "" {
		return "", fmt.Errorf("GITHUB_TOKEN environment variable is empty")
	}

	return token, nil
}

// NewClient creates a new GitHub API client with the provided token
func NewClient(token string) (*Client, error) {
	return NewClientWithContext(context.Background(), token)
}

// NewClientWithContext creates a client whose HTTP transport logs every API
// call to stderr when logging is enabled in ctx.
func NewClientWithContext(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	var httpClient *http.Client
	if logging.IsLoggingEnabled(ctx) {
		httpClient = &http.Client{
			Transport: logging.NewLoggingRoundTripper(http.DefaultTransport, os.Stderr),
		}
	}

	client := github.NewClient(httpClient).WithAuthToken(token)

	return &Client{
		client: client,
		token:  token,
	}, nil
}

// SetBaseURL points the client at a different API root, e.g. the
// GITHUB_API_URL of a GitHub Enterprise Server instance.
func (c *Client) SetBaseURL(apiURL string) error {
	if apiURL == "" {
		return nil
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: scheme and host are required", apiURL)
	}
	c.client.BaseURL = u
	return nil
}

// GetOwnerType reports whether owner is a GitHub "org" or a "user".
func (c *Client) GetOwnerType(ctx context.Context, owner string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("owner cannot be empty")
	}

	user, _, err := c.client.Users.Get(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("failed to look up owner %q: %w", owner, err)
	}

	if user.GetType() == "Organization" {
		return "org", nil
	}
	return "user", nil
}

// ListPackageVersionsPage fetches a single page of active versions of a
// container package. It returns the HTTP status of the response next to the
// versions so callers can insist on a specific one.
func (c *Client) ListPackageVersionsPage(ctx context.Context, owner, ownerType, packageName string, page, perPage int) ([]PackageVersionInfo, int, error) {
	if err := validatePackage(owner, ownerType, packageName); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		return nil, 0, fmt.Errorf("page must be positive, got %d", page)
	}

	opts := &github.PackageListOptions{
		PackageType: github.String(PackageTypeContainer),
		State:       github.String("active"),
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	var versions []*github.PackageVersion
	var resp *github.Response
	var err error

	if ownerType == "org" {
		versions, resp, err = c.client.Organizations.PackageGetAllVersions(ctx, owner, PackageTypeContainer, packageName, opts)
	} else {
		versions, resp, err = c.client.Users.PackageGetAllVersions(ctx, owner, PackageTypeContainer, packageName, opts)
	}

	status := statusOf(resp)
	if err != nil {
		return nil, status, fmt.Errorf("failed to list package versions: %w", err)
	}

	result := make([]PackageVersionInfo, 0, len(versions))
	for _, v := range versions {
		result = append(result, toVersionInfo(v))
	}

	return result, status, nil
}

// DeletePackageVersion deletes a single package version and returns the HTTP
// status the API answered with.
func (c *Client) DeletePackageVersion(ctx context.Context, owner, ownerType, packageName string, versionID int64) (int, error) {
	if err := validatePackage(owner, ownerType, packageName); err != nil {
		return 0, err
	}
	if versionID <= 0 {
		return 0, fmt.Errorf("version ID must be positive, got %d", versionID)
	}

	var resp *github.Response
	var err error

	if ownerType == "org" {
		resp, err = c.client.Organizations.PackageDeleteVersion(ctx, owner, PackageTypeContainer, packageName, versionID)
	} else {
		resp, err = c.client.Users.PackageDeleteVersion(ctx, owner, PackageTypeContainer, packageName, versionID)
	}

	status := statusOf(resp)
	if err != nil {
		return status, fmt.Errorf("failed to delete package version %d: %w", versionID, err)
	}

	return status, nil
}

// IsNotFound reports whether err is a GitHub API "Not Found" answer.
func IsNotFound(err error) bool {
	var errResp *github.ErrorResponse
	if !errors.As(err, &errResp) {
		return false
	}
	if errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return true
	}
	return errResp.Message == "Not Found"
}

func validatePackage(owner, ownerType, packageName string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}

	if ownerType != "org" && ownerType != "user" {
		return fmt.Errorf("owner type must be 'org' or 'user', got '%s'", ownerType)
	}

	if packageName == "" {
		return fmt.Errorf("package name cannot be empty")
	}

	return nil
}

func toVersionInfo(v *github.PackageVersion) PackageVersionInfo {
	info := PackageVersionInfo{
		ID:   v.GetID(),
		Name: v.GetName(),
	}
	if v.CreatedAt != nil {
		info.CreatedAt = v.CreatedAt.Format("2006-01-02 15:04:05")
	}
	if md := v.GetMetadata(); md != nil && md.Container != nil {
		info.Tags = md.Container.Tags
	}
	return info
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
