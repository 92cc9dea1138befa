// Package judge scores artifacts with two LLM judges from different
// provider families.
package judge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/gateway"
	"github.com/ashstep2/agent-eval-harness/internal/metrics"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

// Panel is the pair of judges fixed for a run.
type Panel struct {
	Primary   catalog.Model
	Secondary catalog.Model
}

// NewPanel resolves both judge ids and requires them to come from
// different provider families.
func NewPanel(primaryID, secondaryID string) (Panel, error) {
	primary, err := catalog.LookupModel(primaryID)
	if err != nil {
		return Panel{}, fmt.Errorf("primary judge: %w", err)
	}
	secondary, err := catalog.LookupModel(secondaryID)
	if err != nil {
		return Panel{}, fmt.Errorf("secondary judge: %w", err)
	}
	if primary.Provider == secondary.Provider {
		return Panel{}, fmt.Errorf("judges %s and %s are both %s models", primaryID, secondaryID, primary.Provider)
	}
	return Panel{Primary: primary, Secondary: secondary}, nil
}

func DefaultPanel() Panel {
	p, err := NewPanel(catalog.DefaultPrimaryJudge, catalog.DefaultSecondaryJudge)
	if err != nil {
		panic(err)
	}
	return p
}

// RankingRole picks the judge from the opposite family of the evaluated
// model. A model sharing the primary judge's family ranks via the
// secondary judge; every other model ranks via the primary.
func (p Panel) RankingRole(evaluated catalog.Provider) result.Role {
	if evaluated == p.Primary.Provider {
		return result.RoleSecondary
	}
	return result.RolePrimary
}

func (p Panel) Judges() result.Judges {
	return result.Judges{Primary: p.Primary.ID, Secondary: p.Secondary.ID}
}

// Scorer queries judges and turns their replies into JudgeScores. It never
// fails: any call or parse error yields the fallback score set.
type Scorer struct {
	Querier gateway.Querier
	Panel   Panel
	// Parallel runs the two judges of one artifact concurrently.
	Parallel bool
}

func (s *Scorer) Score(ctx context.Context, judgeID string, task *catalog.Task, artifact, stepLabel string) *result.JudgeScore {
	log := clog.FromContext(ctx).With("judge", judgeID, "task", task.ID)

	resp, err := s.Querier.Query(ctx, judgeID, BuildPrompt(task, artifact, stepLabel))
	if err != nil {
		log.Warnf("judge call failed, using fallback scores: %v", err)
		metrics.JudgeFallbacks.WithLabelValues(judgeID).Inc()
		return Fallback(judgeID, task, err.Error())
	}
	js, err := Parse(judgeID, task, resp.Text)
	if err != nil {
		log.Warnf("judge reply unusable, using fallback scores: %v", err)
		metrics.JudgeFallbacks.WithLabelValues(judgeID).Inc()
		return Fallback(judgeID, task, err.Error())
	}
	return js
}

// ScoreBoth scores one artifact with the primary then the secondary judge,
// or with both at once when Parallel is set.
func (s *Scorer) ScoreBoth(ctx context.Context, task *catalog.Task, artifact, stepLabel string) (primary, secondary *result.JudgeScore) {
	if !s.Parallel {
		primary = s.Score(ctx, s.Panel.Primary.ID, task, artifact, stepLabel)
		secondary = s.Score(ctx, s.Panel.Secondary.ID, task, artifact, stepLabel)
		return primary, secondary
	}
	var (
		g      errgroup.Group
		mu     sync.Mutex
		panics []any
	)
	// A panic in a judge goroutine is re-raised here so the caller's
	// recover sees it.
	score := func(judgeID string, out **result.JudgeScore) func() error {
		return func() error {
			defer func() {
				if p := recover(); p != nil {
					mu.Lock()
					panics = append(panics, p)
					mu.Unlock()
				}
			}()
			*out = s.Score(ctx, judgeID, task, artifact, stepLabel)
			return nil
		}
	}
	g.Go(score(s.Panel.Primary.ID, &primary))
	g.Go(score(s.Panel.Secondary.ID, &secondary))
	_ = g.Wait()
	if len(panics) > 0 {
		panic(panics[0])
	}
	return primary, secondary
}

func BuildPrompt(task *catalog.Task, artifact, stepLabel string) string {
	var b strings.Builder
	b.WriteString("You are an expert evaluator of coding agent performance.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", task.Title)
	fmt.Fprintf(&b, "Product question: %s\n", task.ProductQuestion)
	if stepLabel != "" {
		fmt.Fprintf(&b, "Step: %s\n", stepLabel)
	}
	fmt.Fprintf(&b, "\nExpected behavior:\n%s\n\n", task.ExpectedBehavior)

	if strings.TrimSpace(artifact) == "" {
		artifact = "[No response]"
	}
	fmt.Fprintf(&b, "Agent output:\n%s\n\n", artifact)

	b.WriteString("Dimensions to score (1-5):\n")
	for _, r := range task.Rubric {
		fmt.Fprintf(&b, "- %s: %s\n  Guidance: %s\n", r.Dimension, r.Dimension.Description(), r.Guidance)
	}
	b.WriteString(`
Scoring guidelines:
- 5: Excellent, fully meets expectations
- 4: Good, meets expectations with minor issues
- 3: Acceptable, partial success
- 2: Poor, significant issues
- 1: Fail, does not meet expectations

Respond with JSON only:
{
  "scores": [
    { "dimension": "dimension_name", "score": 1-5, "reasoning": "brief explanation" }
  ]
}`)
	return b.String()
}
