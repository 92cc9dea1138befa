package result

import (
	"time"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
)

type Mode string

const (
	ModeSingleShot Mode = "single_shot"
	ModeAgentLoop  Mode = "agent_loop"
)

// Role names one of the two judges of a run.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

type StepID string

const (
	StepAnalyze StepID = "analyze"
	StepPlan    StepID = "plan"
	StepCode    StepID = "code"
	StepReview  StepID = "review"
	StepFinal   StepID = "final"
)

// AgentLoopSteps is the fixed generation order of agent-loop mode.
var AgentLoopSteps = []StepID{StepAnalyze, StepPlan, StepCode, StepReview, StepFinal}

type DimensionScore struct {
	Dimension catalog.Dimension `json:"dimension"`
	Score     int               `json:"score"`
	Reasoning string            `json:"reasoning"`
}

// JudgeScore is one judge's verdict on one artifact.
type JudgeScore struct {
	ModelID         string           `json:"modelId"`
	DimensionScores []DimensionScore `json:"dimensionScores"`
	OverallScore    float64          `json:"overallScore"`
}

// Score returns the judge's score for d and whether it was present.
func (j *JudgeScore) Score(d catalog.Dimension) (int, bool) {
	for _, s := range j.DimensionScores {
		if s.Dimension == d {
			return s.Score, true
		}
	}
	return 0, false
}

type Agreement struct {
	AlignedDimensions map[catalog.Dimension]bool `json:"alignedDimensions"`
	AlignmentRate     float64                    `json:"alignmentRate"`
}

type ModelResult struct {
	ModelID           string                        `json:"modelId"`
	DisplayName       string                        `json:"displayName"`
	Response          string                        `json:"response"`
	ReasoningSummary  string                        `json:"reasoningSummary"`
	Primary           *JudgeScore                   `json:"primary"`
	Secondary         *JudgeScore                   `json:"secondary"`
	RankingJudge      Role                          `json:"rankingJudge"`
	DimensionAverages map[catalog.Dimension]float64 `json:"dimensionAverages"`
	WeightedScore     float64                       `json:"weightedScore"`
	Agreement         Agreement                     `json:"agreement"`
}

// Ranking returns the judge score that drives this model's weighted score.
func (m *ModelResult) Ranking() *JudgeScore {
	if m.RankingJudge == RoleSecondary {
		return m.Secondary
	}
	return m.Primary
}

type AgentLoopStep struct {
	ModelID         string      `json:"modelId"`
	ID              StepID      `json:"id"`
	Title           string      `json:"title"`
	Prompt          string      `json:"prompt"`
	Response        string      `json:"response"`
	PrimaryScores   *JudgeScore `json:"primaryScores,omitempty"`
	SecondaryScores *JudgeScore `json:"secondaryScores,omitempty"`
}

type Judges struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type InterJudgeAgreement struct {
	AlignmentRate float64 `json:"alignmentRate"`
}

// EvaluationRun is the immutable record of one finished evaluation.
type EvaluationRun struct {
	ID                  string                  `json:"id"`
	TaskID              string                  `json:"taskId"`
	TaskTitle           string                  `json:"taskTitle"`
	Mode                Mode                    `json:"mode"`
	Models              []string                `json:"models"`
	WeightPreset        string                  `json:"weightPreset"`
	Weights             catalog.Weights         `json:"weights"`
	Judges              Judges                  `json:"judges"`
	StartedAt           time.Time               `json:"startedAt"`
	CompletedAt         time.Time               `json:"completedAt"`
	ModelResults        map[string]*ModelResult `json:"modelResults"`
	Steps               []*AgentLoopStep        `json:"steps,omitempty"`
	Winner              string                  `json:"winner"`
	WinnerScore         float64                 `json:"winnerScore"`
	InterJudgeAgreement InterJudgeAgreement     `json:"interJudgeAgreement"`
}
