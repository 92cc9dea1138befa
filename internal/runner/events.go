package runner

import (
	"encoding/json"
	"fmt"

	"github.com/ashstep2/agent-eval-harness/internal/result"
)

type EventKind string

const (
	KindProgress EventKind = "progress"
	KindResponse EventKind = "response"
	KindStep     EventKind = "step"
	KindComplete EventKind = "complete"
	KindError    EventKind = "error"
)

// Event is one entry of a run's ordered event stream. The concrete types
// are ProgressEvent, ResponseEvent, StepEvent, CompleteEvent and ErrorEvent.
type Event interface {
	Kind() EventKind
}

type Phase string

const (
	PhaseQuerying Phase = "querying"
	PhaseScoring  Phase = "scoring"
	PhaseComplete Phase = "complete"
)

// scoringLabel is shown as the current model while judges run.
const scoringLabel = "Evaluator"

type ProgressEvent struct {
	CurrentStepIndex int    `json:"currentStepIndex"`
	TotalSteps       int    `json:"totalSteps"`
	CurrentModel     string `json:"currentModel"`
	Phase            Phase  `json:"phase"`
}

type ResponseEvent struct {
	ModelID string        `json:"modelId"`
	Text    string        `json:"text"`
	StepID  result.StepID `json:"stepId,omitempty"`
}

type StepEvent struct {
	*result.AgentLoopStep
}

type CompleteEvent struct {
	*result.EvaluationRun
}

type ErrorEvent struct {
	Message string `json:"message"`
}

func (ProgressEvent) Kind() EventKind { return KindProgress }
func (ResponseEvent) Kind() EventKind { return KindResponse }
func (StepEvent) Kind() EventKind     { return KindStep }
func (CompleteEvent) Kind() EventKind { return KindComplete }
func (ErrorEvent) Kind() EventKind    { return KindError }

// Terminal reports whether e ends the stream.
func Terminal(e Event) bool {
	k := e.Kind()
	return k == KindComplete || k == KindError
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type EventKind `json:"type"`
	Data Event     `json:"data"`
}

func Wrap(e Event) Envelope {
	return Envelope{Type: e.Kind(), Data: e}
}

// DecodeEnvelope parses the wire form back into a typed event.
func DecodeEnvelope(data []byte) (Event, error) {
	var raw struct {
		Type EventKind       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch raw.Type {
	case KindProgress:
		var p ProgressEvent
		err = json.Unmarshal(raw.Data, &p)
		e = p
	case KindResponse:
		var r ResponseEvent
		err = json.Unmarshal(raw.Data, &r)
		e = r
	case KindStep:
		s := StepEvent{AgentLoopStep: &result.AgentLoopStep{}}
		err = json.Unmarshal(raw.Data, s.AgentLoopStep)
		e = s
	case KindComplete:
		c := CompleteEvent{EvaluationRun: &result.EvaluationRun{}}
		err = json.Unmarshal(raw.Data, c.EvaluationRun)
		e = c
	case KindError:
		var x ErrorEvent
		err = json.Unmarshal(raw.Data, &x)
		e = x
	default:
		return nil, fmt.Errorf("decoding event: unknown type %q", raw.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", raw.Type, err)
	}
	return e, nil
}
