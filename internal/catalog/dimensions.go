package catalog

// Dimension is one scoring axis of a task rubric.
type Dimension string

const (
	Correctness        Dimension = "correctness"
	StyleAdherence     Dimension = "style_adherence"
	ContextUtilization Dimension = "context_utilization"
	Completeness       Dimension = "completeness"
	ExplanationQuality Dimension = "explanation_quality"
	EdgeCaseHandling   Dimension = "edge_case_handling"
)

type DimensionInfo struct {
	Name        Dimension `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
}

// Dimensions is the closed set of scoring axes, in display order.
var Dimensions = []DimensionInfo{
	{Correctness, "Correctness", "Does the code work and solve the problem as specified?"},
	{StyleAdherence, "Style Adherence", "Follows existing repo conventions and patterns."},
	{ContextUtilization, "Context Utilization", "Uses existing code, types, and context appropriately."},
	{Completeness, "Completeness", "Fully addresses the requested scope without gaps."},
	{ExplanationQuality, "Explanation Quality", "Explanation enables developer verification and trust."},
	{EdgeCaseHandling, "Edge Case Handling", "Handles edge cases for production readiness."},
}

// Valid reports whether d is one of the six known dimensions.
func (d Dimension) Valid() bool {
	_, ok := lookupDimension(d)
	return ok
}

// Description returns the dimension description, or the name itself when unknown.
func (d Dimension) Description() string {
	if info, ok := lookupDimension(d); ok {
		return info.Description
	}
	return string(d)
}

func (d Dimension) DisplayName() string {
	if info, ok := lookupDimension(d); ok {
		return info.DisplayName
	}
	return string(d)
}

func lookupDimension(d Dimension) (DimensionInfo, bool) {
	for _, info := range Dimensions {
		if info.Name == d {
			return info, true
		}
	}
	return DimensionInfo{}, false
}
