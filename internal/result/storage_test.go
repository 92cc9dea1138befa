package result_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

func sampleRun(id string, completed time.Time) *result.EvaluationRun {
	score := &result.JudgeScore{
		ModelID: catalog.DefaultSecondaryJudge,
		DimensionScores: []result.DimensionScore{
			{Dimension: catalog.Correctness, Score: 4, Reasoning: "handles the filter"},
		},
		OverallScore: 4,
	}
	return &result.EvaluationRun{
		ID:          id,
		TaskID:      "fix-pagination-bug",
		Mode:        result.ModeSingleShot,
		Models:      []string{"claude-opus-4-6"},
		StartedAt:   completed.Add(-time.Minute),
		CompletedAt: completed,
		ModelResults: map[string]*result.ModelResult{
			"claude-opus-4-6": {
				ModelID:      "claude-opus-4-6",
				Primary:      score,
				Secondary:    score,
				RankingJudge: result.RoleSecondary,
			},
		},
		Winner:      "claude-opus-4-6",
		WinnerScore: 4,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := result.NewFileStore(filepath.Join(t.TempDir(), "runs"))
	run := sampleRun("eval_1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, "eval_1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.ModelResults["claude-opus-4-6"].Ranking() != got.ModelResults["claude-opus-4-6"].Secondary {
		t.Error("Ranking should return the secondary score")
	}
}

func TestFileStoreLoadAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := result.NewFileStore(dir)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"eval_old", "eval_new", "eval_mid"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		if err := store.Save(ctx, sampleRun(id, base.Add(offset))); err != nil {
			t.Fatal(err)
		}
	}
	// Malformed and id-less files are skipped.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "noid.json"), []byte(`{"taskId":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	runs, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"eval_new", "eval_mid", "eval_old"}, ids); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestFileStoreMissing(t *testing.T) {
	ctx := context.Background()
	store := result.NewFileStore(filepath.Join(t.TempDir(), "absent"))
	runs, err := store.LoadAll(ctx)
	if err != nil || len(runs) != 0 {
		t.Errorf("LoadAll on missing dir: %v, %d runs", err, len(runs))
	}
	if _, err := store.Load(ctx, "eval_x"); !errors.Is(err, result.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("AGENTEVAL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AGENTEVAL_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := result.NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer store.Close()

	run := sampleRun("eval_pg_"+time.Now().Format("150405.000"), time.Now().UTC().Truncate(time.Second))
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, run.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Winner != run.Winner {
		t.Errorf("winner: got %q, want %q", got.Winner, run.Winner)
	}
}
