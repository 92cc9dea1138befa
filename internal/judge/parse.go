package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

const (
	minScore = 1
	maxScore = 5
)

var (
	ErrNoPayload = errors.New("no JSON object in judge reply")
	ErrNoScores  = errors.New("judge reply has no scores for rubric dimensions")
)

// reply is the payload a judge must embed in its answer.
type reply struct {
	Scores *[]replyEntry `json:"scores"`
}

type replyEntry struct {
	Dimension string   `json:"dimension"`
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

// Parse decodes a judge reply into a JudgeScore. Entries naming a dimension
// outside the task rubric, repeating a dimension, or missing a score are
// dropped; scores are clamped to [1,5] and rounded. An error means the
// caller should fall back.
func Parse(judgeID string, task *catalog.Task, text string) (*result.JudgeScore, error) {
	payload := extractObject(text)
	if payload == "" {
		return nil, ErrNoPayload
	}
	var r reply
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decoding judge reply: %w", err)
	}
	if r.Scores == nil {
		return nil, fmt.Errorf("decoding judge reply: missing scores field")
	}

	byDim := make(map[catalog.Dimension]result.DimensionScore, len(*r.Scores))
	for _, e := range *r.Scores {
		d := catalog.Dimension(strings.TrimSpace(e.Dimension))
		if e.Score == nil || !task.HasDimension(d) {
			continue
		}
		if _, dup := byDim[d]; dup {
			continue
		}
		byDim[d] = result.DimensionScore{
			Dimension: d,
			Score:     Clamp(*e.Score),
			Reasoning: e.Reasoning,
		}
	}
	if len(byDim) == 0 {
		return nil, ErrNoScores
	}

	js := &result.JudgeScore{ModelID: judgeID}
	var total int
	for _, rub := range task.Rubric {
		s, ok := byDim[rub.Dimension]
		if !ok {
			continue
		}
		js.DimensionScores = append(js.DimensionScores, s)
		total += s.Score
	}
	js.OverallScore = float64(total) / float64(len(js.DimensionScores))
	return js, nil
}

// Clamp maps any judge-supplied number onto the integer range [1,5].
func Clamp(v float64) int {
	if math.IsNaN(v) {
		return minScore
	}
	v = math.Round(v)
	switch {
	case v < minScore:
		return minScore
	case v > maxScore:
		return maxScore
	}
	return int(v)
}

// Fallback scores every rubric dimension 1 with the failure cause as reasoning.
func Fallback(judgeID string, task *catalog.Task, cause string) *result.JudgeScore {
	js := &result.JudgeScore{ModelID: judgeID, OverallScore: minScore}
	for _, rub := range task.Rubric {
		js.DimensionScores = append(js.DimensionScores, result.DimensionScore{
			Dimension: rub.Dimension,
			Score:     minScore,
			Reasoning: "Evaluation failed: " + cause,
		})
	}
	return js
}

// extractObject returns the first balanced {...} span in s, ignoring braces
// inside JSON strings, or "" when there is none.
func extractObject(s string) string {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if span := matchBrace(s[start:]); span != "" {
			return span
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ""
}

func matchBrace(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
