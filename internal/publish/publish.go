// Package publish runs the whole publish flow: build, login, removal of the
// version already carrying the tag, push and cleanup.
package publish

import (
	"context"
	"fmt"

	"github.com/mkoepf/ghcrpush/internal/collision"
	"github.com/mkoepf/ghcrpush/internal/config"
	"github.com/mkoepf/ghcrpush/internal/display"
	"github.com/mkoepf/ghcrpush/internal/dockerfile"
	"github.com/mkoepf/ghcrpush/internal/engine"
	"github.com/mkoepf/ghcrpush/internal/gh"
	"github.com/mkoepf/ghcrpush/internal/logging"
	"github.com/mkoepf/ghcrpush/internal/oras"
	"github.com/sirupsen/logrus"
)

// Engine is the subset of engine.Engine the publisher drives.
type Engine interface {
	Build(ctx context.Context, spec engine.BuildSpec) error
	Login(ctx context.Context, registry, username, secret, dir string) error
	Push(ctx context.Context, ref, dir string) error
	Logout(ctx context.Context, registry string) error
}

// TagResolver removes the package version currently carrying a tag.
type TagResolver interface {
	Resolve(ctx context.Context, t collision.Target) (int64, bool, error)
}

// Verifier checks a pushed image.
type Verifier interface {
	Verify(ctx context.Context, ref string, want map[string]string) (*oras.Result, error)
}

// Outcome summarises a successful run.
type Outcome struct {
	ImageRef       string
	DeletedVersion int64
	Digest         string
}

// Publisher wires the steps of a run together. Verifier is optional.
type Publisher struct {
	Engine     Engine
	Collisions TagResolver
	Verifier   Verifier
	Log        *logrus.Logger
}

// New builds a Publisher talking to the real container engine, the GitHub
// packages API and, when cfg.Verify is set, the registry.
func New(ctx context.Context, cfg *config.BuildConfig, log *logrus.Logger) (*Publisher, error) {
	client, err := gh.NewClientWithContext(ctx, cfg.Credentials.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	if err := client.SetBaseURL(cfg.APIURL); err != nil {
		return nil, err
	}

	resolver := collision.NewResolver(client, log)
	resolver.MaxPages = cfg.MaxPages

	p := &Publisher{
		Engine:     engine.New(cfg.Engine, nil, log),
		Collisions: resolver,
		Log:        log,
	}
	if cfg.Verify {
		p.Verifier = oras.NewVerifier(cfg.Credentials.Username, cfg.Credentials.Secret)
	}
	return p, nil
}

// Run executes the flow for cfg. The temporary Dockerfile and the registry
// login are cleaned up on every return path, even when ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, cfg *config.BuildConfig) (out *Outcome, err error) {
	logging.Mask(p.Log, cfg.Credentials.Secret)

	ref := cfg.ImageRef()
	out = &Outcome{ImageRef: ref}

	dockerfilePath, removeDockerfile, err := dockerfile.Materialize(cfg)
	if err != nil {
		return nil, err
	}

	loggedIn := false
	defer func() {
		removeDockerfile()
		if loggedIn {
			p.logout(context.WithoutCancel(ctx), cfg.RegistryHost)
		}
	}()

	p.Log.Infof("Building %s", display.ColorTag(ref))
	labels := cfg.Labels
	err = p.Engine.Build(ctx, engine.BuildSpec{
		Dockerfile: dockerfilePath,
		ContextDir: cfg.BuildContextPath,
		ImageRef:   ref,
		Labels:     labels,
		SourceURL:  cfg.SourceURL,
	})
	if err != nil {
		return nil, err
	}

	p.Log.Infof("Logging in to %s as %s", cfg.RegistryHost, cfg.Credentials.Username)
	err = p.Engine.Login(ctx, cfg.RegistryHost, cfg.Credentials.Username, cfg.Credentials.Secret, cfg.BuildContextPath)
	if err != nil {
		return nil, err
	}
	loggedIn = true

	id, deleted, err := p.Collisions.Resolve(ctx, collision.Target{
		Owner:     cfg.Owner,
		OwnerType: cfg.OwnerType,
		Package:   cfg.PackageName(),
		Tag:       cfg.TagName,
	})
	if err != nil {
		return nil, err
	}
	if deleted {
		out.DeletedVersion = id
		p.Log.Infof("Deleted version %d previously tagged %s", id, display.ColorTag(cfg.TagName))
	}

	p.Log.Infof("Pushing %s", display.ColorTag(ref))
	if err := p.Engine.Push(ctx, ref, cfg.BuildContextPath); err != nil {
		return nil, err
	}
	logging.SetOutput("image", ref)

	if p.Verifier != nil {
		want := oras.LabelMap(append(append([]string(nil), labels...), engine.ProvenanceLabel+"="+cfg.SourceURL))
		result, err := p.Verifier.Verify(ctx, ref, want)
		if err != nil {
			return nil, fmt.Errorf("verification of %s failed: %w", ref, err)
		}
		out.Digest = result.Digest.String()
		p.Log.Infof("Verified %s at %s", display.ColorTag(ref), display.ColorDigest(display.ShortDigest(out.Digest)))
		logging.SetOutput("digest", out.Digest)
	}

	p.Log.Info(display.ColorSuccess("Published " + ref))
	return out, nil
}

func (p *Publisher) logout(ctx context.Context, registry string) {
	if err := p.Engine.Logout(ctx, registry); err != nil {
		p.Log.Warnf("Logout from %s failed: %v", registry, err)
	}
}
