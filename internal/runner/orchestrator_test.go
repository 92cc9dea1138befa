package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/judge"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

const (
	codex  = "gpt-5.3-codex"
	opus   = "claude-opus-4-6"
	taskID = "add-pagination"
)

func uniformScores(score int) string {
	var entries []string
	for _, d := range catalog.Dimensions {
		entries = append(entries, fmt.Sprintf(`{"dimension":%q,"score":%d,"reasoning":"r"}`, d.Name, score))
	}
	return `{"scores":[` + strings.Join(entries, ",") + `]}`
}

// fakeQuerier answers generation calls with a numbered reply and judge calls
// through judge.
type fakeQuerier struct {
	mu      sync.Mutex
	n       int
	genErr  map[string]error
	judge   func(judgeID, prompt string) string
	prompts map[string][]string
	runIDs  []string
}

func (f *fakeQuerier) Query(ctx context.Context, modelID, prompt string) (*gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prompts == nil {
		f.prompts = make(map[string][]string)
	}
	f.prompts[modelID] = append(f.prompts[modelID], prompt)
	f.runIDs = append(f.runIDs, gateway.RunIDFromContext(ctx))

	if modelID == catalog.DefaultPrimaryJudge || modelID == catalog.DefaultSecondaryJudge {
		if f.judge == nil {
			return &gateway.Response{ModelID: modelID, Text: uniformScores(4)}, nil
		}
		return &gateway.Response{ModelID: modelID, Text: f.judge(modelID, prompt)}, nil
	}
	if err := f.genErr[modelID]; err != nil {
		return nil, err
	}
	f.n++
	return &gateway.Response{ModelID: modelID, Text: fmt.Sprintf("%s answer %d", modelID, f.n)}, nil
}

type memStore struct {
	mu   sync.Mutex
	runs []*result.EvaluationRun
	err  error
}

func (s *memStore) Save(_ context.Context, run *result.EvaluationRun) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (*result.EvaluationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, result.ErrNotFound
}

func (s *memStore) LoadAll(context.Context) ([]*result.EvaluationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*result.EvaluationRun(nil), s.runs...), nil
}

func newRunner(t *testing.T, q *fakeQuerier, store result.Store) *runner.Runner {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &runner.Runner{
		Catalog: cat,
		Querier: q,
		Scorer:  &judge.Scorer{Querier: q, Panel: judge.DefaultPanel()},
		Store:   store,
		Now:     func() time.Time { return fixed },
		NewID:   func() string { return "eval_test" },
	}
}

func lastComplete(t *testing.T, events []runner.Event) *result.EvaluationRun {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events")
	}
	last := events[len(events)-1]
	c, ok := last.(runner.CompleteEvent)
	if !ok {
		t.Fatalf("last event is %s, want complete: %+v", last.Kind(), last)
	}
	for _, e := range events[:len(events)-1] {
		if runner.Terminal(e) {
			t.Fatalf("terminal event %s before the end", e.Kind())
		}
	}
	return c.EvaluationRun
}

func kinds(events []runner.Event) []runner.EventKind {
	out := make([]runner.EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind()
	}
	return out
}

func TestSingleShotEventOrder(t *testing.T) {
	q := &fakeQuerier{}
	events := newRunner(t, q, nil).Collect(context.Background(), runner.Input{TaskID: taskID, Models: []string{opus}})

	want := []runner.EventKind{
		runner.KindProgress, runner.KindResponse, runner.KindProgress, runner.KindProgress, runner.KindComplete,
	}
	if diff := cmp.Diff(want, kinds(events)); diff != "" {
		t.Fatalf("event kinds (-want +got):\n%s", diff)
	}

	querying := events[0].(runner.ProgressEvent)
	if querying.Phase != runner.PhaseQuerying || querying.CurrentStepIndex != 1 || querying.TotalSteps != 1 || querying.CurrentModel != "Claude Opus 4.6" {
		t.Errorf("unexpected querying progress: %+v", querying)
	}
	scoring := events[2].(runner.ProgressEvent)
	if scoring.Phase != runner.PhaseScoring || scoring.CurrentModel != "Evaluator" {
		t.Errorf("unexpected scoring progress: %+v", scoring)
	}
	if done := events[3].(runner.ProgressEvent); done.Phase != runner.PhaseComplete {
		t.Errorf("unexpected phase: %s", done.Phase)
	}

	run := lastComplete(t, events)
	if run.Mode != result.ModeSingleShot || run.WeightPreset != catalog.PresetDeveloperTrust {
		t.Errorf("defaults not applied: mode=%s preset=%s", run.Mode, run.WeightPreset)
	}
	if run.Steps != nil {
		t.Errorf("single-shot run should carry no steps")
	}
	if run.Judges.Primary != catalog.DefaultPrimaryJudge || run.Judges.Secondary != catalog.DefaultSecondaryJudge {
		t.Errorf("judges: %+v", run.Judges)
	}
	for _, id := range q.runIDs {
		if id != "eval_test" {
			t.Fatalf("query carried run id %q", id)
		}
	}
}

func TestCrossFamilyRanking(t *testing.T) {
	q := &fakeQuerier{judge: func(judgeID, prompt string) string {
		if strings.Contains(prompt, opus+" answer") {
			if judgeID == catalog.DefaultPrimaryJudge {
				return uniformScores(5)
			}
			return uniformScores(3)
		}
		return uniformScores(4)
	}}
	store := &memStore{}
	events := newRunner(t, q, store).Collect(context.Background(), runner.Input{
		TaskID: taskID,
		Models: []string{codex, opus},
	})
	run := lastComplete(t, events)

	claude := run.ModelResults[opus]
	if claude.RankingJudge != result.RoleSecondary {
		t.Errorf("anthropic model should rank via the secondary judge, got %s", claude.RankingJudge)
	}
	if claude.WeightedScore != 3 {
		t.Errorf("claude weighted score: got %v, want 3", claude.WeightedScore)
	}
	if claude.Agreement.AlignmentRate != 0 {
		t.Errorf("claude alignment: got %v, want 0", claude.Agreement.AlignmentRate)
	}
	gpt := run.ModelResults[codex]
	if gpt.RankingJudge != result.RolePrimary || gpt.WeightedScore != 4 {
		t.Errorf("codex: judge=%s score=%v", gpt.RankingJudge, gpt.WeightedScore)
	}
	if run.Winner != codex || run.WinnerScore != 4 {
		t.Errorf("winner: %s (%v)", run.Winner, run.WinnerScore)
	}
	if run.InterJudgeAgreement.AlignmentRate != 0.5 {
		t.Errorf("overall alignment: got %v", run.InterJudgeAgreement.AlignmentRate)
	}
	if len(store.runs) != 1 || store.runs[0].ID != run.ID {
		t.Errorf("run should be saved before completion, store has %d", len(store.runs))
	}
}

func TestAgentLoop(t *testing.T) {
	q := &fakeQuerier{}
	events := newRunner(t, q, nil).Collect(context.Background(), runner.Input{
		TaskID: taskID,
		Models: []string{opus},
		Mode:   result.ModeAgentLoop,
	})

	// Five steps of progress, response, progress, step; then complete progress and complete.
	if len(events) != 5*4+2 {
		t.Fatalf("got %d events: %v", len(events), kinds(events))
	}
	run := lastComplete(t, events)
	if len(run.Steps) != len(result.AgentLoopSteps) {
		t.Fatalf("got %d steps", len(run.Steps))
	}
	for i, step := range run.Steps {
		if step.ID != result.AgentLoopSteps[i] || step.ModelID != opus {
			t.Errorf("step %d: %s/%s", i, step.ModelID, step.ID)
		}
		if step.Title != strings.ToUpper(string(step.ID)) {
			t.Errorf("step %d title: %q", i, step.Title)
		}
	}

	prompts := q.prompts[opus]
	if len(prompts) != 5 {
		t.Fatalf("got %d generation prompts", len(prompts))
	}
	if strings.Contains(prompts[0], "Previous step output") {
		t.Error("analyze step should not carry prior output")
	}
	if !strings.Contains(prompts[1], "Previous step output:\n"+run.Steps[0].Response) {
		t.Error("plan step should carry the analyze output")
	}
	if !strings.Contains(prompts[4], "Prior output:\n"+run.Steps[3].Response) {
		t.Error("final step should carry the review output")
	}
	if !strings.Contains(q.prompts[catalog.DefaultPrimaryJudge][0], "Step: Step analyze") {
		t.Error("judge prompt should name the step")
	}

	mr := run.ModelResults[opus]
	final := run.Steps[4]
	if mr.Response != final.Response {
		t.Errorf("model response should be the final step's: %q", mr.Response)
	}
	if diff := cmp.Diff(final.SecondaryScores, mr.Secondary); diff != "" {
		t.Errorf("final step scores should be reused (-step +result):\n%s", diff)
	}

	var last runner.ProgressEvent
	for _, e := range events {
		if p, ok := e.(runner.ProgressEvent); ok {
			if p.CurrentStepIndex < last.CurrentStepIndex || p.CurrentStepIndex > p.TotalSteps {
				t.Errorf("progress went from %d to %d of %d", last.CurrentStepIndex, p.CurrentStepIndex, p.TotalSteps)
			}
			last = p
		}
	}
	if last.CurrentStepIndex != 5 || last.TotalSteps != 5 {
		t.Errorf("final progress: %+v", last)
	}
}

func TestAgentLoopTwoModels(t *testing.T) {
	events := newRunner(t, &fakeQuerier{}, nil).Collect(context.Background(), runner.Input{
		TaskID: taskID,
		Models: []string{codex, opus},
		Mode:   result.ModeAgentLoop,
	})

	// 21 events per model, then complete.
	if len(events) != 2*21+1 {
		t.Fatalf("got %d events: %v", len(events), kinds(events))
	}
	run := lastComplete(t, events)

	var steps []*result.AgentLoopStep
	for _, e := range events {
		if s, ok := e.(runner.StepEvent); ok {
			steps = append(steps, s.AgentLoopStep)
		}
	}
	if len(steps) != 10 {
		t.Fatalf("got %d step events", len(steps))
	}
	for i, s := range steps {
		wantModel := codex
		if i >= 5 {
			wantModel = opus
		}
		if s.ModelID != wantModel || s.ID != result.AgentLoopSteps[i%5] {
			t.Errorf("step %d: %s/%s", i, s.ModelID, s.ID)
		}
	}
	if diff := cmp.Diff(steps, run.Steps); diff != "" {
		t.Errorf("run steps differ from streamed steps (-events +run):\n%s", diff)
	}

	for _, id := range []string{codex, opus} {
		var final *result.AgentLoopStep
		for _, s := range run.Steps {
			if s.ModelID == id && s.ID == result.StepFinal {
				final = s
			}
		}
		if final == nil {
			t.Fatalf("%s has no final step", id)
		}
		if got := run.ModelResults[id].Response; got != final.Response {
			t.Errorf("%s response %q, want its own final step %q", id, got, final.Response)
		}
	}
	if run.ModelResults[codex].Response == run.ModelResults[opus].Response {
		t.Error("models should not share a final response")
	}
}

func TestGenerationFailureIsScored(t *testing.T) {
	q := &fakeQuerier{genErr: map[string]error{"gpt-5-mini": errors.New("upstream unavailable")}}
	events := newRunner(t, q, nil).Collect(context.Background(), runner.Input{
		TaskID: taskID,
		Models: []string{"gpt-5-mini", "claude-3-5-haiku-20241022"},
	})
	run := lastComplete(t, events)
	if len(run.ModelResults) != 2 {
		t.Fatalf("got %d model results", len(run.ModelResults))
	}
	var sawError bool
	for _, e := range events {
		if r, ok := e.(runner.ResponseEvent); ok && r.ModelID == "gpt-5-mini" {
			sawError = r.Text == "upstream unavailable"
		}
	}
	if !sawError {
		t.Error("failed generation should surface its error text as the response")
	}
	if got := run.ModelResults["gpt-5-mini"].Response; got != "upstream unavailable" {
		t.Errorf("response: %q", got)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	in := runner.Input{TaskID: taskID, Models: []string{codex, opus}, WeightPreset: catalog.PresetShipFast}
	first := lastComplete(t, newRunner(t, &fakeQuerier{}, nil).Collect(context.Background(), in))
	second := lastComplete(t, newRunner(t, &fakeQuerier{}, nil).Collect(context.Background(), in))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("identical inputs diverged (-first +second):\n%s", diff)
	}
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		in   runner.Input
		want string
	}{
		{"unknown task", runner.Input{TaskID: "nope", Models: []string{opus}}, "invalid task: nope"},
		{"no models", runner.Input{TaskID: taskID}, "select 1-3 models to compare"},
		{"too many models", runner.Input{TaskID: taskID, Models: []string{"gpt-5.2", "gpt-5-mini", "gpt-5-nano", opus}}, "select 1-3 models to compare"},
		{"unknown model", runner.Input{TaskID: taskID, Models: []string{"llama"}}, "invalid model: llama"},
		{"unknown mode", runner.Input{TaskID: taskID, Models: []string{opus}, Mode: "marathon"}, "invalid mode: marathon"},
		{"custom without weights", runner.Input{TaskID: taskID, Models: []string{opus}, WeightPreset: catalog.PresetCustom}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{}
			events := newRunner(t, q, nil).Collect(context.Background(), tt.in)
			if len(events) != 1 {
				t.Fatalf("got %d events, want a single error: %v", len(events), kinds(events))
			}
			e, ok := events[0].(runner.ErrorEvent)
			if !ok {
				t.Fatalf("got %s event", events[0].Kind())
			}
			if tt.want != "" && e.Message != tt.want {
				t.Errorf("message: got %q, want %q", e.Message, tt.want)
			}
			if len(q.prompts) != 0 {
				t.Error("invalid input must not reach the gateway")
			}
		})
	}
}

func TestStorageFailureStillCompletes(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	events := newRunner(t, &fakeQuerier{}, store).Collect(context.Background(), runner.Input{TaskID: taskID, Models: []string{opus}})
	lastComplete(t, events)
}

// blockingQuerier never answers until its context is done.
type blockingQuerier struct{ started chan struct{} }

func (b *blockingQuerier) Query(ctx context.Context, _, _ string) (*gateway.Response, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCancelStopsRun(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	q := &blockingQuerier{started: make(chan struct{})}
	r := &runner.Runner{
		Catalog: cat,
		Querier: q,
		Scorer:  &judge.Scorer{Querier: q, Panel: judge.DefaultPanel()},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := r.Run(ctx, runner.Input{TaskID: taskID, Models: []string{opus}})

	var got []runner.Event
	for e := range events {
		got = append(got, e)
		if _, ok := e.(runner.ProgressEvent); ok {
			<-q.started
			cancel()
		}
	}
	for _, e := range got {
		if e.Kind() == runner.KindComplete {
			t.Fatal("cancelled run must not complete")
		}
	}
}

type panicJudge struct{ fakeQuerier }

func (p *panicJudge) Query(ctx context.Context, modelID, prompt string) (*gateway.Response, error) {
	if modelID == catalog.DefaultSecondaryJudge {
		panic("judge blew up")
	}
	return p.fakeQuerier.Query(ctx, modelID, prompt)
}

func TestJudgePanicBecomesErrorEvent(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			q := &panicJudge{}
			r := newRunner(t, &q.fakeQuerier, nil)
			r.Querier = q
			r.Scorer = &judge.Scorer{Querier: q, Panel: judge.DefaultPanel(), Parallel: parallel}

			events := r.Collect(context.Background(), runner.Input{TaskID: taskID, Models: []string{codex, opus}})
			last, ok := events[len(events)-1].(runner.ErrorEvent)
			if !ok {
				t.Fatalf("last event: %v", kinds(events))
			}
			if last.Message != "internal error: judge blew up" {
				t.Errorf("message: %q", last.Message)
			}
			for _, e := range events[:len(events)-1] {
				if runner.Terminal(e) {
					t.Errorf("terminal %s before the error event", e.Kind())
				}
			}
		})
	}
}

func TestRunBatch(t *testing.T) {
	r := newRunner(t, &fakeQuerier{}, nil)
	inputs := []runner.Input{
		{TaskID: taskID, Models: []string{opus}},
		{TaskID: "nope", Models: []string{opus}},
		{TaskID: "retry-backoff", Models: []string{codex}},
	}
	var mu sync.Mutex
	seen := map[int]int{}
	results := r.RunBatch(context.Background(), inputs, 2, func(i int, _ runner.Event) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Run == nil || results[2].Run == nil {
		t.Errorf("valid inputs should complete: %+v", results)
	}
	if results[1].Err == nil || !strings.Contains(results[1].Err.Error(), "invalid task") {
		t.Errorf("invalid input error: %v", results[1].Err)
	}
	if seen[1] != 1 || seen[0] == 0 {
		t.Errorf("event callbacks: %v", seen)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	events := newRunner(t, &fakeQuerier{}, nil).Collect(context.Background(), runner.Input{
		TaskID: taskID, Models: []string{opus}, Mode: result.ModeAgentLoop,
	})
	for _, e := range events {
		data, err := json.Marshal(runner.Wrap(e))
		if err != nil {
			t.Fatal(err)
		}
		back, err := runner.DecodeEnvelope(data)
		if err != nil {
			t.Fatalf("%s: %v", e.Kind(), err)
		}
		if back.Kind() != e.Kind() {
			t.Errorf("kind changed: %s -> %s", e.Kind(), back.Kind())
		}
	}
	if _, err := runner.DecodeEnvelope([]byte(`{"type":"bogus","data":{}}`)); err == nil {
		t.Error("unknown type should fail")
	}
}
