package docker_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashstep2/agent-eval-harness/internal/docker"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("AGENTEVAL_DOCKER_TESTS") == "" {
		t.Skip("set AGENTEVAL_DOCKER_TESTS=1 to run Docker tests")
	}
}

func TestRunContainer(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	workDir := t.TempDir()
	outDir := t.TempDir()

	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:       "alpine:latest",
		Command:     []string{"sh", "-c", "echo patched > /workspace/a.txt && echo done > /out/last.txt && echo visible"},
		WorkDir:     workDir,
		ExtraMounts: []docker.Mount{{Source: outDir, Target: "/out"}},
		Timeout:     30 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 0 || result.TimedOut {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.Contains(result.Logs, "visible") {
		t.Errorf("logs: got %q", result.Logs)
	}
	content, err := os.ReadFile(filepath.Join(outDir, "last.txt"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(content) != "done\n" {
		t.Errorf("output: got %q, want %q", content, "done\n")
	}
}

func TestRunContainerTimeout(t *testing.T) {
	requireDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sleep", "300"},
		WorkDir: t.TempDir(),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected timeout")
	}
	if result.ExitCode != 124 {
		t.Errorf("exit code: got %d, want 124", result.ExitCode)
	}
}

func TestRunContainerCrash(t *testing.T) {
	requireDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "exit 1"},
		WorkDir: t.TempDir(),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", result.ExitCode)
	}
}
