// Package decision implements the rule-based credit decision engine: the
// high-risk classifier, NPL banding and the tiered facility approval policy.
// Every evaluation is a pure function of its inputs with no shared state, so
// the package is safe for any number of concurrent callers.
package decision

import "fmt"

// High-risk thresholds. Each predicate is independent; all of them are
// evaluated so that every applicable reason is collected.
const (
	dpdThreshold            = 90.0
	ltvThreshold            = 80.0
	avgDPDThreshold         = 60.0
	collectionRateThreshold = 0.70
	riskSeverityThreshold   = 0.7
)

// NPL banding thresholds, evaluated highest to lowest.
const (
	nplDaysThreshold = 180
	defaultPOD       = 0.5
)

// Metrics carries a customer's behavioral inputs to the risk and approval
// logic. Constructed fresh per evaluation; use DefaultMetrics so absent data
// takes the safe value for each predicate (zeros everywhere except a full
// collection rate).
type Metrics struct {
	POD             float64 `json:"pod"`               // probability of default, 0-1
	DPD             float64 `json:"dpd"`               // current days past due
	DPDMean         float64 `json:"dpd_mean"`          // mean days past due
	LTV             float64 `json:"ltv"`               // loan-to-value, percent
	CollectionRate  float64 `json:"collection_rate"`   // 0-1
	AvgRiskSeverity float64 `json:"avg_risk_severity"` // 0-1
}

// DefaultMetrics returns the safe baseline: a customer with no recorded data
// must never classify as high-risk.
func DefaultMetrics() Metrics {
	return Metrics{POD: defaultPOD, CollectionRate: 1.0}
}

// ClassifyHighRisk evaluates the five independent threshold predicates and
// returns the overall flag with one human-readable reason per tripped
// predicate, in fixed order.
func ClassifyHighRisk(m Metrics) (bool, []string) {
	var reasons []string

	if m.DPD > dpdThreshold {
		reasons = append(reasons, fmt.Sprintf("DPD %.0f days > %.0f threshold", m.DPD, dpdThreshold))
	}
	if m.LTV > ltvThreshold {
		reasons = append(reasons, fmt.Sprintf("LTV %.1f%% > %.0f%% threshold", m.LTV, ltvThreshold))
	}
	if m.DPDMean > avgDPDThreshold {
		reasons = append(reasons, fmt.Sprintf("Avg DPD %.0f > %.0f threshold", m.DPDMean, avgDPDThreshold))
	}
	if m.CollectionRate < collectionRateThreshold {
		reasons = append(reasons, fmt.Sprintf("Collection rate %.1f%% < %.0f%% threshold", m.CollectionRate*100, collectionRateThreshold*100))
	}
	if m.AvgRiskSeverity > riskSeverityThreshold {
		reasons = append(reasons, fmt.Sprintf("Risk severity %.2f > %.2f threshold", m.AvgRiskSeverity, riskSeverityThreshold))
	}

	return len(reasons) > 0, reasons
}

// ClassifyNPL bands an account by days past due. The bands partition every
// non-negative DPD into exactly one classification; only the 180+ band is a
// non-performing loan.
func ClassifyNPL(dpd int) (bool, string) {
	switch {
	case dpd >= nplDaysThreshold:
		return true, fmt.Sprintf("NPL - %d days overdue", dpd)
	case dpd >= 90:
		return false, fmt.Sprintf("High Risk - %d days overdue", dpd)
	case dpd >= 60:
		return false, fmt.Sprintf("Medium Risk - %d days overdue", dpd)
	case dpd >= 30:
		return false, fmt.Sprintf("Watch List - %d days overdue", dpd)
	default:
		return false, "Current"
	}
}
