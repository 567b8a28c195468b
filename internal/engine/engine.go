package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ProvenanceLabel links a published image to its source repository. It is
// always set by Build and cannot be supplied by the caller.
const ProvenanceLabel = "org.opencontainers.image.source"

// ToolError reports a container engine command that exited non-zero.
type ToolError struct {
	Op       string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("unable to complete %s process (exit code %d)", e.Op, e.ExitCode)
	if e.Stderr != "" {
		msg += " [" + e.Stderr + "]"
	}
	return msg
}

// Engine runs container engine subcommands.
type Engine struct {
	binary string
	runner Runner
	log    logrus.FieldLogger
}

// New creates an Engine for binary ("docker" when empty).
func New(binary string, runner Runner, log logrus.FieldLogger) *Engine {
	if binary == "" {
		binary = "docker"
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{binary: binary, runner: runner, log: log}
}

// BuildSpec holds the inputs of an image build.
type BuildSpec struct {
	Dockerfile string
	ContextDir string
	ImageRef   string
	Labels     []string
	SourceURL  string
}

// BuildArgs returns the arguments of the build subcommand. User labels keep
// their order; the provenance label is appended last, exactly once.
func BuildArgs(spec BuildSpec) []string {
	args := []string{
		"build",
		"--no-cache",
		"--progress", "tty",
		"--file", spec.Dockerfile,
		"--tag", spec.ImageRef,
	}
	for _, label := range spec.Labels {
		if labelName(label) == ProvenanceLabel {
			continue
		}
		args = append(args, "--label", label)
	}
	args = append(args, "--label", ProvenanceLabel+"="+spec.SourceURL)
	args = append(args, ".")
	return args
}

// Build builds the image described by spec inside spec.ContextDir.
func (e *Engine) Build(ctx context.Context, spec BuildSpec) error {
	if spec.ImageRef == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	if spec.Dockerfile == "" {
		return fmt.Errorf("dockerfile cannot be empty")
	}
	return e.run(ctx, "build", Command{
		Name: e.binary,
		Args: BuildArgs(spec),
		Dir:  spec.ContextDir,
	})
}

// Login authenticates against registry. The secret is passed on stdin so it
// never shows up in the process list.
func (e *Engine) Login(ctx context.Context, registry, username, secret, dir string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}
	return e.run(ctx, "login", Command{
		Name:  e.binary,
		Args:  []string{"login", "--username", username, "--password-stdin", registry},
		Dir:   dir,
		Stdin: secret,
	})
}

// Push uploads ref to its registry.
func (e *Engine) Push(ctx context.Context, ref, dir string) error {
	if ref == "" {
		return fmt.Errorf("image reference cannot be empty")
	}
	return e.run(ctx, "push", Command{
		Name: e.binary,
		Args: []string{"push", ref},
		Dir:  dir,
	})
}

// Logout removes the stored credentials for registry.
func (e *Engine) Logout(ctx context.Context, registry string) error {
	return e.run(ctx, "logout", Command{
		Name: e.binary,
		Args: []string{"logout", registry},
	})
}

func (e *Engine) run(ctx context.Context, op string, cmd Command) error {
	e.log.Debugf("Running: %s", cmd)

	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("unable to complete %s %s process: %w", e.binary, op, err)
	}
	if res.ExitCode != 0 {
		return &ToolError{
			Op:       e.binary + " " + op,
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(res.Stderr),
		}
	}
	return nil
}

func labelName(label string) string {
	name, _, _ := strings.Cut(label, "=")
	return name
}
