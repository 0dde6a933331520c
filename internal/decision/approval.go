package decision

import (
	"fmt"
	"math"
	"strings"
)

// Tier is a facility-size bracket carrying its own policy thresholds.
type Tier string

const (
	TierMicro  Tier = "micro"
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
)

// RiskLevel is the final POD band, derived independently of the
// approve/decline outcome.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// tierPolicy fixes the thresholds for one tier. The table is immutable;
// adding a tier is a compile-time-visible change.
type tierPolicy struct {
	MaxAmount          float64
	MaxPOD             float64
	MinCollateralRatio float64
}

var tierPolicies = map[Tier]tierPolicy{
	TierMicro:  {MaxAmount: 50_000, MaxPOD: 0.35, MinCollateralRatio: 1.0},
	TierSmall:  {MaxAmount: 200_000, MaxPOD: 0.30, MinCollateralRatio: 1.2},
	TierMedium: {MaxAmount: math.Inf(1), MaxPOD: 0.20, MinCollateralRatio: 1.5},
}

// Advisory thresholds: non-blocking conditions attached to the decision.
const (
	targetCollectionRate = 0.85
	biweeklyDPDThreshold = 30.0
	einvoiceThreshold    = 1_000.0
)

// Decision is the immutable approval result. Conditions and reasons keep the
// order in which the evaluation steps produced them; that order is part of
// the contract.
type Decision struct {
	Approved           bool      `json:"approved"`
	Tier               Tier      `json:"tier"`
	RiskLevel          RiskLevel `json:"risk_level"`
	RecommendedAmount  float64   `json:"recommended_amount"`
	RequiredCollateral float64   `json:"required_collateral"`
	Conditions         []string  `json:"conditions"`
	Reasons            []string  `json:"reasons"`
	POD                float64   `json:"pod"`
}

// TierFor selects the facility tier by requested amount.
func TierFor(amount float64) Tier {
	switch {
	case amount <= tierPolicies[TierMicro].MaxAmount:
		return TierMicro
	case amount <= tierPolicies[TierSmall].MaxAmount:
		return TierSmall
	default:
		return TierMedium
	}
}

// EvaluateFacilityApproval applies the tiered approval policy. It is a pure
// function: same inputs always produce the same decision with conditions and
// reasons in the same order.
//
// The micro tier deliberately never declines on a collateral shortfall; it
// attaches a personal-guarantee condition instead, whatever the shortfall.
func EvaluateFacilityApproval(facilityAmount float64, m Metrics, collateralValue float64) Decision {
	tier := TierFor(facilityAmount)
	policy := tierPolicies[tier]

	var (
		conditions        []string
		reasons           []string
		approved          = true
		recommendedAmount = facilityAmount
	)

	requiredCollateral := facilityAmount * policy.MinCollateralRatio

	// Step 1: POD against the tier ceiling.
	if m.POD > policy.MaxPOD {
		approved = false
		recommendedAmount = 0
		reasons = append(reasons, fmt.Sprintf("POD %.2f%% exceeds %.2f%% threshold for %s facilities",
			m.POD*100, policy.MaxPOD*100, tier))
	}

	// Step 2: collateral coverage. Micro facilities are not auto-declined;
	// larger tiers decline and the recommendation drops to the maximum the
	// offered collateral could support.
	if collateralValue < requiredCollateral {
		if tier == TierMicro {
			conditions = append(conditions, fmt.Sprintf("Recommend personal guarantee (collateral shortfall: $%.0f)",
				requiredCollateral-collateralValue))
		} else {
			approved = false
			reasons = append(reasons, fmt.Sprintf("Insufficient collateral: $%.0f < $%.0f required",
				collateralValue, requiredCollateral))
			recommendedAmount = collateralValue / policy.MinCollateralRatio
		}
	}

	// Step 3: high-risk classification.
	if isHighRisk, riskReasons := ClassifyHighRisk(m); isHighRisk {
		if tier == TierMicro {
			conditions = append(conditions, "Enhanced monitoring required due to risk flags")
			conditions = append(conditions, riskReasons...)
		} else {
			approved = false
			reasons = append(reasons, riskReasons...)
		}
	}

	// Step 4: advisory conditions, never blocking.
	if m.CollectionRate < targetCollectionRate {
		conditions = append(conditions, fmt.Sprintf("Collection rate %.1f%% below target %.0f%%",
			m.CollectionRate*100, targetCollectionRate*100))
	}
	if m.DPDMean > biweeklyDPDThreshold {
		conditions = append(conditions, "Payment history shows delays - recommend bi-weekly monitoring")
	}
	if facilityAmount >= einvoiceThreshold {
		conditions = append(conditions, fmt.Sprintf("E-invoice integration required (Hacienda compliance for amounts >= $%.0f)",
			einvoiceThreshold))
	}

	// Step 5: final risk level from POD bands, independent of the outcome.
	riskLevel := riskLevelFor(m.POD)

	// Step 6: success reasons.
	if approved {
		reasons = append(reasons, fmt.Sprintf("%s facility approved - POD %.2f%% within acceptable range",
			titleCase(string(tier)), m.POD*100))
		if collateralValue >= requiredCollateral {
			reasons = append(reasons, fmt.Sprintf("Adequate collateral coverage: %.1fx", collateralValue/facilityAmount))
		}
	}

	return Decision{
		Approved:           approved,
		Tier:               tier,
		RiskLevel:          riskLevel,
		RecommendedAmount:  recommendedAmount,
		RequiredCollateral: requiredCollateral,
		Conditions:         conditions,
		Reasons:            reasons,
		POD:                m.POD,
	}
}

func riskLevelFor(pod float64) RiskLevel {
	switch {
	case pod < 0.15:
		return RiskLow
	case pod < 0.30:
		return RiskMedium
	case pod < 0.50:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
