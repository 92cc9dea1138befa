package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/docker"
	"github.com/ashstep2/agent-eval-harness/internal/gitops"
)

const (
	DefaultCodexTimeout       = 5 * time.Minute
	DefaultCodexFallbackModel = "codex-mini-latest"

	lastMessageFile = "last-message.txt"
)

type CodexOpts struct {
	Binary  string
	Timeout time.Duration
	// SandboxImage, when set, runs the CLI in a container of this image.
	SandboxImage string
	// APIKey is passed to the sandboxed CLI as OPENAI_API_KEY.
	APIKey string
	// Fallback answers for FallbackModel when the binary is missing and no
	// sandbox is configured.
	Fallback      Backend
	FallbackModel string
}

// CodexBackend runs `codex exec` non-interactively in a throwaway git
// workspace seeded from the context's workspace files.
type CodexBackend struct {
	opts CodexOpts
}

func NewCodex(opts CodexOpts) *CodexBackend {
	if opts.Binary == "" {
		opts.Binary = "codex"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCodexTimeout
	}
	if opts.FallbackModel == "" {
		opts.FallbackModel = DefaultCodexFallbackModel
	}
	return &CodexBackend{opts: opts}
}

func (b *CodexBackend) Query(ctx context.Context, model catalog.Model, prompt string) (*Response, error) {
	if b.opts.SandboxImage == "" {
		if _, err := exec.LookPath(b.opts.Binary); err != nil {
			return b.fallback(ctx, model, prompt)
		}
	}

	root, err := os.MkdirTemp("", "agenteval-codex-*")
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	defer os.RemoveAll(root)

	workDir := filepath.Join(root, "repo")
	outDir := filepath.Join(root, "out")
	for _, d := range []string{workDir, outDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace: %w", err)
		}
	}
	if err := gitops.InitWorkspace(workDir, workspaceFromContext(ctx)); err != nil {
		return nil, fmt.Errorf("initializing workspace: %w", err)
	}

	var stdout string
	if b.opts.SandboxImage != "" {
		stdout, err = b.runSandboxed(ctx, model, prompt, workDir, outDir)
	} else {
		stdout, err = b.runLocal(ctx, model, prompt, workDir, outDir)
	}
	if err != nil {
		return nil, err
	}

	text := stdout
	if data, err := os.ReadFile(filepath.Join(outDir, lastMessageFile)); err == nil {
		text = string(data)
	}
	diff, err := gitops.CaptureChanges(workDir)
	if err != nil {
		clog.FromContext(ctx).Warnf("capturing codex workspace changes: %v", err)
	} else if len(diff) > 0 {
		text = strings.TrimRight(text, "\n") + "\n\nWorkspace changes:\n```diff\n" + string(diff) + "```\n"
	}
	return &Response{ModelID: model.ID, Text: text}, nil
}

func (b *CodexBackend) args(model catalog.Model, outFile, prompt string) []string {
	return []string{"exec", "-m", model.ID, "--output-last-message", outFile, "--full-auto", prompt}
}

func (b *CodexBackend) runLocal(ctx context.Context, model catalog.Model, prompt, workDir, outDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.opts.Binary, b.args(model, filepath.Join(outDir, lastMessageFile), prompt)...)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("codex timed out after %s", b.opts.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("codex exec: %s", msg)
		}
		return "", fmt.Errorf("codex exec: %w", err)
	}
	return stdout.String(), nil
}

func (b *CodexBackend) runSandboxed(ctx context.Context, model catalog.Model, prompt, workDir, outDir string) (string, error) {
	res, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:       b.opts.SandboxImage,
		Command:     append([]string{b.opts.Binary}, b.args(model, "/out/"+lastMessageFile, prompt)...),
		WorkDir:     workDir,
		ExtraMounts: []docker.Mount{{Source: outDir, Target: "/out"}},
		Env:         map[string]string{"OPENAI_API_KEY": b.opts.APIKey},
		Timeout:     b.opts.Timeout,
		LogTail:     "200",
	})
	if err != nil {
		return "", fmt.Errorf("codex sandbox: %w", err)
	}
	if res.TimedOut {
		return "", fmt.Errorf("codex timed out after %s", b.opts.Timeout)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("codex exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Logs))
	}
	return res.Logs, nil
}

func (b *CodexBackend) fallback(ctx context.Context, model catalog.Model, prompt string) (*Response, error) {
	if b.opts.Fallback == nil {
		return nil, fmt.Errorf("%s not found and no fallback configured", b.opts.Binary)
	}
	clog.FromContext(ctx).Warnf("%s not found, answering %s with %s", b.opts.Binary, model.ID, b.opts.FallbackModel)
	resp, err := b.opts.Fallback.Query(ctx, catalog.Model{
		ID:       b.opts.FallbackModel,
		Provider: catalog.ProviderOpenAI,
		Type:     catalog.ModelTypeAPI,
	}, prompt)
	if err != nil {
		return nil, err
	}
	resp.ModelID = model.ID
	return resp, nil
}
