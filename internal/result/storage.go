package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
)

var ErrNotFound = errors.New("run not found")

// Store persists finished evaluation runs.
type Store interface {
	Save(ctx context.Context, run *EvaluationRun) error
	// LoadAll returns every stored run, newest completedAt first.
	LoadAll(ctx context.Context) ([]*EvaluationRun, error)
	Load(ctx context.Context, id string) (*EvaluationRun, error)
}

// FileStore keeps one indented JSON file per run.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Save(_ context.Context, run *EvaluationRun) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating runs dir: %w", err)
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	return os.WriteFile(s.path(run.ID), data, 0o644)
}

func (s *FileStore) Load(_ context.Context, id string) (*EvaluationRun, error) {
	run, err := ReadRun(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

func (s *FileStore) LoadAll(ctx context.Context) ([]*EvaluationRun, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading runs dir: %w", err)
	}
	var runs []*EvaluationRun
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		run, err := ReadRun(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			clog.FromContext(ctx).Warnf("skipping stored run %s: %v", e.Name(), err)
			continue
		}
		runs = append(runs, run)
	}
	SortNewestFirst(runs)
	return runs, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, filepath.Base(id)+".json")
}

func ReadRun(path string) (*EvaluationRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	return DecodeRun(data)
}

// DecodeRun parses a stored run, rejecting records without an id.
func DecodeRun(data []byte) (*EvaluationRun, error) {
	var run EvaluationRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing run: %w", err)
	}
	if run.ID == "" {
		return nil, fmt.Errorf("parsing run: missing id")
	}
	return &run, nil
}

func SortNewestFirst(runs []*EvaluationRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CompletedAt.After(runs[j].CompletedAt)
	})
}
