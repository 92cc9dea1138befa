// Package scoring aggregates judge scores into dimension averages, weighted
// scores, inter-judge agreement and a winner.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/ashstep2/agent-eval-harness/internal/catalog"
	"github.com/ashstep2/agent-eval-harness/internal/result"
)

// alignmentTolerance is the largest score gap at which two judges still agree.
const alignmentTolerance = 1

// DimensionAverages projects the ranking judge's scores into a lookup map.
// Dimensions the judge did not return are absent.
func DimensionAverages(ranking *result.JudgeScore) map[catalog.Dimension]float64 {
	out := make(map[catalog.Dimension]float64, len(ranking.DimensionScores))
	for _, s := range ranking.DimensionScores {
		out[s.Dimension] = float64(s.Score)
	}
	return out
}

// WeightedScore is the linear sum of score*weight over the judge's
// dimensions, rounded to two decimals. Missing weights count as zero and
// the vector is not normalized.
func WeightedScore(ranking *result.JudgeScore, weights catalog.Weights) float64 {
	var total float64
	for _, s := range ranking.DimensionScores {
		total += float64(s.Score) * weights[s.Dimension]
	}
	return Round2(total)
}

func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Agreement compares every primary dimension with the secondary judge.
// A dimension the secondary did not score is not aligned.
func Agreement(primary, secondary *result.JudgeScore) result.Agreement {
	aligned := make(map[catalog.Dimension]bool, len(primary.DimensionScores))
	var count int
	for _, p := range primary.DimensionScores {
		s, ok := secondary.Score(p.Dimension)
		ok = ok && abs(p.Score-s) <= alignmentTolerance
		aligned[p.Dimension] = ok
		if ok {
			count++
		}
	}
	var rate float64
	if n := len(primary.DimensionScores); n > 0 {
		rate = float64(count) / float64(n)
	}
	return result.Agreement{AlignedDimensions: aligned, AlignmentRate: rate}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ReasoningSummary renders strengths (>=4) and weaknesses (<=2), or a flat
// listing when every dimension sits in between.
func ReasoningSummary(ranking *result.JudgeScore) string {
	var strengths, weaknesses []string
	for _, d := range ranking.DimensionScores {
		entry := fmt.Sprintf("%s (%d/5): %s", d.Dimension, d.Score, d.Reasoning)
		switch {
		case d.Score >= 4:
			strengths = append(strengths, entry)
		case d.Score <= 2:
			weaknesses = append(weaknesses, entry)
		}
	}

	var parts []string
	if len(strengths) > 0 {
		parts = append(parts, "Strengths: "+strings.Join(strengths, " | "))
	}
	if len(weaknesses) > 0 {
		parts = append(parts, "Weaknesses: "+strings.Join(weaknesses, " | "))
	}
	if len(parts) == 0 {
		dims := make([]string, 0, len(ranking.DimensionScores))
		for _, d := range ranking.DimensionScores {
			dims = append(dims, fmt.Sprintf("%s (%d/5)", d.Dimension, d.Score))
		}
		parts = append(parts, "Mixed results across dimensions: "+strings.Join(dims, ", "))
	}
	return strings.Join(parts, " — ")
}

// Winner returns the model with the highest weighted score. Ties go to the
// earliest model in order.
func Winner(order []string, results map[string]*result.ModelResult) (string, float64) {
	var (
		winner string
		best   float64
		found  bool
	)
	for _, id := range order {
		r, ok := results[id]
		if !ok {
			continue
		}
		if !found || r.WeightedScore > best {
			winner, best, found = id, r.WeightedScore, true
		}
	}
	return winner, best
}

// OverallAlignment is the mean per-model alignment rate, summed in model
// order. It is 0 with no models.
func OverallAlignment(order []string, results map[string]*result.ModelResult) float64 {
	var (
		total float64
		n     int
	)
	for _, id := range order {
		if r, ok := results[id]; ok {
			total += r.Agreement.AlignmentRate
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
