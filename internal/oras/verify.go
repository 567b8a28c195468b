// Package oras reads back pushed images from the registry with oras-go.
package oras

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/mkoepf/ghcrpush/internal/logging"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// Media types written by docker push, which predate the OCI ones.
const (
	MediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

// Result describes the image found behind a pushed tag.
type Result struct {
	Digest    digest.Digest
	MediaType string
	Labels    map[string]string
}

// LabelMismatchError lists the expected labels the pushed image lacks.
type LabelMismatchError struct {
	Ref        string
	Mismatches []string
}

func (e *LabelMismatchError) Error() string {
	return fmt.Sprintf("pushed image %s does not carry the expected labels: %s", e.Ref, strings.Join(e.Mismatches, "; "))
}

// Verifier checks that a pushed tag resolves to an image with the expected
// labels.
type Verifier struct {
	Username string
	Secret   string
	// PlainHTTP talks to the registry without TLS (local registries only).
	PlainHTTP bool
}

// NewVerifier returns a Verifier authenticating with username and secret.
func NewVerifier(username, secret string) *Verifier {
	return &Verifier{Username: username, Secret: secret}
}

// Verify resolves ref, reads the image config (of the first platform image
// for an index) and compares its labels with want.
func (v *Verifier) Verify(ctx context.Context, ref string, want map[string]string) (*Result, error) {
	parsed, err := registry.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	if parsed.Reference == "" {
		return nil, fmt.Errorf("image reference %q has no tag", ref)
	}

	repo, err := remote.NewRepository(parsed.Registry + "/" + parsed.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository reference: %w", err)
	}
	repo.PlainHTTP = v.PlainHTTP
	repo.Client = v.authClient(ctx, parsed.Registry)

	desc, err := repo.Resolve(ctx, parsed.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tag '%s': %w", parsed.Reference, err)
	}
	if err := desc.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digest returned for %s: %w", ref, err)
	}

	img, err := fetchImageConfig(ctx, repo, desc)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Digest:    desc.Digest,
		MediaType: desc.MediaType,
		Labels:    img.Config.Labels,
	}

	if mismatches := compareLabels(want, img.Config.Labels); len(mismatches) > 0 {
		return result, &LabelMismatchError{Ref: ref, Mismatches: mismatches}
	}

	return result, nil
}

// LabelMap turns NAME=VALUE labels into a map.
func LabelMap(labels []string) map[string]string {
	m := make(map[string]string, len(labels))
	for _, l := range labels {
		name, value, _ := strings.Cut(l, "=")
		m[name] = value
	}
	return m
}

func (v *Verifier) authClient(ctx context.Context, host string) *auth.Client {
	var httpClient *http.Client
	if logging.IsLoggingEnabled(ctx) {
		httpClient = &http.Client{
			Transport: logging.NewLoggingRoundTripper(http.DefaultTransport, os.Stderr),
		}
	}

	client := &auth.Client{
		Cache:  auth.NewCache(),
		Client: httpClient,
	}
	if v.Secret == "" {
		return client
	}

	username := v.Username
	if username == "" {
		// ghcr.io accepts any username next to a token
		username = "oauth2"
	}

	store := credentials.NewMemoryStore()
	_ = store.Put(ctx, host, auth.Credential{Username: username, Password: v.Secret})
	client.Credential = credentials.Credential(store)

	return client
}

func fetchImageConfig(ctx context.Context, repo *remote.Repository, desc ocispec.Descriptor) (*ocispec.Image, error) {
	data, err := content.FetchAll(ctx, repo, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}

	switch desc.MediaType {
	case ocispec.MediaTypeImageIndex, MediaTypeDockerManifestList:
		var index ocispec.Index
		if err := json.Unmarshal(data, &index); err != nil {
			return nil, fmt.Errorf("failed to decode image index: %w", err)
		}
		platformDesc, ok := firstPlatformManifest(index)
		if !ok {
			return nil, fmt.Errorf("image index has no platform manifests")
		}
		return fetchImageConfig(ctx, repo, platformDesc)

	case ocispec.MediaTypeImageManifest, MediaTypeDockerManifest:
		var manifest ocispec.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}

		configData, err := content.FetchAll(ctx, repo, manifest.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch config blob: %w", err)
		}

		var img ocispec.Image
		if err := json.Unmarshal(configData, &img); err != nil {
			return nil, fmt.Errorf("failed to decode image config: %w", err)
		}
		return &img, nil

	default:
		return nil, fmt.Errorf("unsupported manifest media type %q", desc.MediaType)
	}
}

// firstPlatformManifest skips the unknown/unknown entries buildx adds for
// attestations.
func firstPlatformManifest(index ocispec.Index) (ocispec.Descriptor, bool) {
	for _, m := range index.Manifests {
		if m.Platform != nil && m.Platform.OS == "unknown" {
			continue
		}
		return m, true
	}
	return ocispec.Descriptor{}, false
}

func compareLabels(want, got map[string]string) []string {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []string
	for _, name := range names {
		value, ok := got[name]
		switch {
		case !ok:
			mismatches = append(mismatches, fmt.Sprintf("%s is missing", name))
		case value != want[name]:
			mismatches = append(mismatches, fmt.Sprintf("%s is %q, expected %q", name, value, want[name]))
		}
	}
	return mismatches
}
