package decision

import "fmt"

// IndustryType is the closed MYPE industry classification.
type IndustryType string

const (
	IndustryTrade         IndustryType = "trade"
	IndustryServices      IndustryType = "services"
	IndustryManufacturing IndustryType = "manufacturing"
	IndustryAgriculture   IndustryType = "agriculture"
	IndustryConstruction  IndustryType = "construction"
	IndustryTransport     IndustryType = "transport"
	IndustryOther         IndustryType = "other"
)

// gdpContribution per industry, from the MYPE 2025 report.
var gdpContribution = map[IndustryType]float64{
	IndustryTrade:         0.25,
	IndustryServices:      0.30,
	IndustryManufacturing: 0.20,
	IndustryAgriculture:   0.15,
	IndustryConstruction:  0.07,
	IndustryTransport:     0.03,
}

// Portfolio-wide targets.
const (
	TargetRotation       = 5.5
	TargetCollectionRate = targetCollectionRate
)

// IndustryAdjustment returns the risk adjustment factor for an industry.
// Industries with a higher GDP contribution get a favorable adjustment.
func IndustryAdjustment(industry IndustryType) float64 {
	contribution, ok := gdpContribution[industry]
	if !ok {
		contribution = 0.05
	}
	switch {
	case contribution >= 0.25:
		return 0.95
	case contribution >= 0.15:
		return 1.0
	default:
		return 1.05
	}
}

// CheckRotation compares annual revenue turnover against the 5.5x target.
func CheckRotation(totalRevenue, avgBalance float64) (float64, bool, string) {
	if avgBalance == 0 {
		return 0, false, "No balance data available"
	}
	rotation := totalRevenue / avgBalance
	if rotation >= TargetRotation {
		return rotation, true, fmt.Sprintf("Rotation %.1fx meets target %.1fx", rotation, TargetRotation)
	}
	gap := TargetRotation - rotation
	return rotation, false, fmt.Sprintf("Rotation %.1fx below target by %.1fx", rotation, gap)
}

// Benchmarks are the industry-specific reference metrics.
type Benchmarks struct {
	TargetRotation      float64 `json:"target_rotation"`
	TargetCollection    float64 `json:"target_collection_rate"`
	MaxDPD              int     `json:"max_dpd"`
	GDPContribution     float64 `json:"gdp_contribution"`
	TypicalFacilitySize float64 `json:"typical_facility_size,omitempty"`
}

// IndustryBenchmarks returns the benchmark set for an industry, starting
// from the portfolio-wide targets and applying per-industry overrides.
// Agriculture gets more DPD tolerance for seasonal cash flow.
func IndustryBenchmarks(industry IndustryType) Benchmarks {
	b := Benchmarks{
		TargetRotation:   TargetRotation,
		TargetCollection: TargetCollectionRate,
		MaxDPD:           30,
		GDPContribution:  gdpContribution[industry],
	}
	if b.GDPContribution == 0 {
		b.GDPContribution = 0.05
	}
	switch industry {
	case IndustryTrade:
		b.TargetRotation = 6.0
		b.TypicalFacilitySize = 25_000
	case IndustryServices:
		b.TargetRotation = 5.0
		b.TypicalFacilitySize = 30_000
	case IndustryManufacturing:
		b.TargetRotation = 4.5
		b.TypicalFacilitySize = 75_000
	case IndustryAgriculture:
		b.TargetRotation = 3.0
		b.TypicalFacilitySize = 40_000
		b.MaxDPD = 60
	}
	return b
}
