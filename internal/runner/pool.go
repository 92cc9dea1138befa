package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/ashstep2/agent-eval-harness/internal/result"
)

type Job func(ctx context.Context) error

// RunPool executes jobs with at most maxWorkers concurrently. Jobs not yet
// started when ctx is done are skipped with ctx's error. Returns all errors.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	sem := make(chan struct{}, maxWorkers)

	for _, job := range jobs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			record(ctx.Err())
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := j(ctx); err != nil {
				record(err)
			}
		}(job)
	}
	wg.Wait()
	return errs
}

// BatchResult is the outcome of one evaluation in a batch.
type BatchResult struct {
	Input Input
	Run   *result.EvaluationRun
	Err   error
}

// RunBatch evaluates every input on a worker pool. onEvent, when set, sees
// each event with the index of its input; it may be called concurrently.
// Results are returned in input order.
func (r *Runner) RunBatch(ctx context.Context, inputs []Input, workers int, onEvent func(int, Event)) []BatchResult {
	out := make([]BatchResult, len(inputs))
	jobs := make([]Job, len(inputs))
	for i, in := range inputs {
		out[i].Input = in
		jobs[i] = func(ctx context.Context) error {
			for e := range r.Run(ctx, in) {
				if onEvent != nil {
					onEvent(i, e)
				}
				switch e := e.(type) {
				case CompleteEvent:
					out[i].Run = e.EvaluationRun
				case ErrorEvent:
					out[i].Err = fmt.Errorf("%s: %s", in.TaskID, e.Message)
				}
			}
			if out[i].Run == nil && out[i].Err == nil {
				out[i].Err = fmt.Errorf("%s: %w", in.TaskID, ctx.Err())
			}
			return out[i].Err
		}
	}
	// Per-input errors are already recorded in out.
	RunPool(ctx, workers, jobs)
	for i := range out {
		if out[i].Run == nil && out[i].Err == nil {
			out[i].Err = fmt.Errorf("%s: %w", inputs[i].TaskID, context.Cause(ctx))
		}
	}
	return out
}
