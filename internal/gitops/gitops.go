// Package gitops manages the throwaway git workspaces that CLI agents edit.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// InitWorkspace writes files (relative path to content) into dir and commits
// them as the baseline, so later edits show up in CaptureChanges.
func InitWorkspace(dir string, files map[string]string) error {
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "agenteval@localhost"},
		{"config", "user.name", "agenteval"},
	} {
		if err := git(dir, args...); err != nil {
			return err
		}
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
		}
		if err := os.WriteFile(full, []byte(files[p]), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}

	if err := git(dir, "add", "-A"); err != nil {
		return err
	}
	return git(dir, "commit", "-q", "--allow-empty", "-m", "baseline")
}

// CaptureChanges stages all changes (including untracked files) and returns the diff.
func CaptureChanges(repoDir string) ([]byte, error) {
	if err := git(repoDir, "add", "-A"); err != nil {
		return nil, err
	}
	diff := exec.Command("git", "diff", "--cached")
	diff.Dir = repoDir
	out, err := diff.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	return out, nil
}

func git(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %s: %w", args[0], out, err)
	}
	return nil
}
