// Package runner drives evaluation runs and emits their ordered event stream.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/judge"
	"github.com/ashstep2/agent-eval-harness/internal/metrics"
	"github.com/ashstep2/agent-eval-harness/internal/prompt"
	"github.com/ashstep2/agent-eval-harness/internal/result"
	"github.com/ashstep2/agent-eval-harness/internal/scoring"
)

// Runner orchestrates one evaluation per Run call. Models are processed
// sequentially in input order.
type Runner struct {
	Catalog *catalog.Catalog
	Querier gateway.Querier
	Scorer  *judge.Scorer
	// Store is optional; save failures are logged and never fail a run.
	Store result.Store

	Now   func() time.Time
	NewID func() string
}

// Run starts an evaluation and returns its event stream. The channel ends
// after exactly one complete or error event, or early when ctx is done.
func (r *Runner) Run(ctx context.Context, in Input) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		r.run(ctx, in, out)
	}()
	return out
}

// Collect runs an evaluation to completion and returns every event.
func (r *Runner) Collect(ctx context.Context, in Input) []Event {
	var events []Event
	for e := range r.Run(ctx, in) {
		events = append(events, e)
	}
	return events
}

type emitter struct {
	ctx context.Context
	out chan<- Event
}

func (em *emitter) send(e Event) error {
	select {
	case em.out <- e:
		return nil
	case <-em.ctx.Done():
		return em.ctx.Err()
	}
}

func (r *Runner) run(ctx context.Context, in Input, out chan<- Event) {
	em := &emitter{ctx: ctx, out: out}
	mode := string(in.Mode)

	fail := func(err error) {
		metrics.EvaluationsFailed.WithLabelValues(mode).Inc()
		clog.FromContext(ctx).Errorf("evaluation failed: %v", err)
		_ = em.send(ErrorEvent{Message: err.Error()})
	}
	defer func() {
		if p := recover(); p != nil {
			fail(fmt.Errorf("internal error: %v", p))
		}
	}()

	plan, err := in.Resolve(r.Catalog)
	if err != nil {
		fail(err)
		return
	}
	mode = string(plan.Mode)
	metrics.EvaluationsStarted.WithLabelValues(mode).Inc()

	run, err := r.execute(ctx, plan, em)
	if err != nil {
		fail(err)
		return
	}

	if r.Store != nil {
		if err := r.Store.Save(ctx, run); err != nil {
			clog.FromContext(ctx).Warnf("saving run %s: %v", run.ID, err)
		}
	}
	if err := em.send(CompleteEvent{EvaluationRun: run}); err == nil {
		metrics.EvaluationsCompleted.WithLabelValues(mode).Inc()
	}
}

type stepKey struct {
	modelID string
	stepID  result.StepID
}

// runState is the in-flight accumulation owned by one execute call.
type runState struct {
	steps   map[stepKey]*result.AgentLoopStep
	order   []*result.AgentLoopStep
	results map[string]*result.ModelResult
}

func (s *runState) addStep(step *result.AgentLoopStep) {
	s.steps[stepKey{step.ModelID, step.ID}] = step
	s.order = append(s.order, step)
}

func (r *Runner) execute(ctx context.Context, plan *Plan, em *emitter) (*result.EvaluationRun, error) {
	runID := plan.ID
	if runID == "" {
		runID = r.newID()
	}
	startedAt := r.now()
	ctx = gateway.WithRunID(ctx, runID)
	ctx = gateway.WithWorkspace(ctx, workspaceFiles(plan.Task))
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("evaluation", runID, "task", plan.Task.ID))

	state := &runState{
		steps:   make(map[stepKey]*result.AgentLoopStep),
		results: make(map[string]*result.ModelResult, len(plan.Candidates)),
	}
	total := plan.TotalSteps()
	index := 0

	progress := func(label string, phase Phase) error {
		current := index
		if phase == PhaseQuerying {
			current++
		}
		return em.send(ProgressEvent{
			CurrentStepIndex: min(current, total),
			TotalSteps:       total,
			CurrentModel:     label,
			Phase:            phase,
		})
	}

	for _, model := range plan.Candidates {
		display := model.DisplayName
		var (
			artifact           string
			primary, secondary *result.JudgeScore
		)

		switch plan.Mode {
		case result.ModeSingleShot:
			if err := progress(display, PhaseQuerying); err != nil {
				return nil, err
			}
			text, err := r.generate(ctx, model.ID, prompt.BuildSingleShot(plan.Task))
			if err != nil {
				return nil, err
			}
			index++
			if err := em.send(ResponseEvent{ModelID: model.ID, Text: text}); err != nil {
				return nil, err
			}
			if err := progress(scoringLabel, PhaseScoring); err != nil {
				return nil, err
			}
			artifact = text
			primary, secondary = r.Scorer.ScoreBoth(ctx, plan.Task, text, "")

		case result.ModeAgentLoop:
			prior := ""
			for _, stepID := range result.AgentLoopSteps {
				stepPrompt := prompt.BuildStep(plan.Task, stepID, prior)
				if err := progress(display, PhaseQuerying); err != nil {
					return nil, err
				}
				text, err := r.generate(ctx, model.ID, stepPrompt)
				if err != nil {
					return nil, err
				}
				prior = text
				index++
				if err := em.send(ResponseEvent{ModelID: model.ID, Text: text, StepID: stepID}); err != nil {
					return nil, err
				}
				if err := progress(scoringLabel, PhaseScoring); err != nil {
					return nil, err
				}
				ps, ss := r.Scorer.ScoreBoth(ctx, plan.Task, text, "Step "+string(stepID))
				step := &result.AgentLoopStep{
					ModelID:         model.ID,
					ID:              stepID,
					Title:           strings.ToUpper(string(stepID)),
					Prompt:          stepPrompt,
					Response:        text,
					PrimaryScores:   ps,
					SecondaryScores: ss,
				}
				state.addStep(step)
				if err := em.send(StepEvent{AgentLoopStep: step}); err != nil {
					return nil, err
				}
			}
			final, ok := state.steps[stepKey{model.ID, result.StepFinal}]
			if !ok {
				return nil, fmt.Errorf("no final step recorded for %s", model.ID)
			}
			artifact, primary, secondary = final.Response, final.PrimaryScores, final.SecondaryScores
		}

		// Judges swallow errors, so cancellation is only visible here.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mr := r.assemble(plan, model, artifact, primary, secondary)
		state.results[model.ID] = mr
		metrics.WeightedScore.WithLabelValues(model.ID).Set(mr.WeightedScore)
		if err := progress(display, PhaseComplete); err != nil {
			return nil, err
		}
	}

	winner, winnerScore := scoring.Winner(plan.Input.Models, state.results)
	run := &result.EvaluationRun{
		ID:           runID,
		TaskID:       plan.Task.ID,
		TaskTitle:    plan.Task.Title,
		Mode:         plan.Mode,
		Models:       append([]string(nil), plan.Input.Models...),
		WeightPreset: plan.WeightPreset,
		Weights:      plan.Weights,
		Judges:       r.Scorer.Panel.Judges(),
		StartedAt:    startedAt,
		CompletedAt:  r.now(),
		ModelResults: state.results,
		Winner:       winner,
		WinnerScore:  winnerScore,
		InterJudgeAgreement: result.InterJudgeAgreement{
			AlignmentRate: scoring.OverallAlignment(plan.Input.Models, state.results),
		},
	}
	if plan.Mode == result.ModeAgentLoop {
		run.Steps = state.order
	}
	clog.FromContext(ctx).Infof("evaluation complete: winner %s (%.2f)", winner, winnerScore)
	return run, nil
}

// generate queries the evaluated model. A gateway failure becomes the
// response text; only cancellation aborts.
func (r *Runner) generate(ctx context.Context, modelID, p string) (string, error) {
	resp, err := r.Querier.Query(ctx, modelID, p)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		clog.FromContext(ctx).Warnf("generation failed for %s, scoring the error text: %v", modelID, err)
		return err.Error(), nil
	}
	return resp.Text, nil
}

func (r *Runner) assemble(plan *Plan, model catalog.Model, artifact string, primary, secondary *result.JudgeScore) *result.ModelResult {
	mr := &result.ModelResult{
		ModelID:      model.ID,
		DisplayName:  model.DisplayName,
		Response:     artifact,
		Primary:      primary,
		Secondary:    secondary,
		RankingJudge: r.Scorer.Panel.RankingRole(model.Provider),
		Agreement:    scoring.Agreement(primary, secondary),
	}
	ranking := mr.Ranking()
	mr.DimensionAverages = scoring.DimensionAverages(ranking)
	mr.WeightedScore = scoring.WeightedScore(ranking, plan.Weights)
	mr.ReasoningSummary = scoring.ReasoningSummary(ranking)
	return mr
}

func workspaceFiles(task *catalog.Task) map[string]string {
	files := make(map[string]string, len(task.ContextFiles))
	for _, f := range task.ContextFiles {
		files[f.Path] = f.Content
	}
	return files
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return "eval_" + uuid.NewString()
}
