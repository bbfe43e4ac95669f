package incident

const (
	FallbackSummary        = "Automated analysis unavailable - manual review required"
	fallbackRecommendation = "Manual review recommended due to analysis failure"
)

// FallbackAnalyzer produces an analysis without calling a model.
type FallbackAnalyzer interface {
	Analyze(transcript string) Analysis
}

// MinimalFallback returns a structurally valid analysis with no findings. It
// does not guess at violations; transcript details are still picked up by
// DeriveReport's heuristics.
type MinimalFallback struct{}

func (MinimalFallback) Analyze(string) Analysis {
	return Analysis{
		Summary:               FallbackSummary,
		Violations:            []Violation{},
		NotificationsRequired: []string{},
		RiskAssessments:       []string{},
		Recommendations:       []string{fallbackRecommendation},
	}
}
