package domain

// RiskLevel is the model's assessment of spending risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// InsightReport is an AI-generated summary of spending habits.
type InsightReport struct {
	Summary     string    `json:"summary"`
	Suggestions []string  `json:"suggestions"`
	RiskLevel   RiskLevel `json:"riskLevel"`
}
