// Package quality derives completeness metrics and a 0-100 score for a
// normalized batch.
package quality

import (
	"math"

	"credit-engine/internal/models"
)

// criticalColumns carry a heavy null penalty: a gap in any of these can zero
// out an otherwise clean batch, protecting downstream risk logic from acting
// on missing core fields.
var criticalColumns = []string{"customer_id", "balance", "amount", "date"}

// criticalPenaltyWeight multiplies the per-row critical null ratio. The
// constant is part of the scoring contract; do not tune it.
const criticalPenaltyWeight = 50.0

// Score computes the quality report for a batch. An empty batch has no null
// cells and no penalty, so it scores 100.
func Score(batch *models.SourceBatch) models.QualityReport {
	rows := len(batch.Records)
	cols := len(batch.Columns)

	nullCells := 0
	for _, rec := range batch.Records {
		for _, col := range batch.Columns {
			if rec[col].IsMissing() {
				nullCells++
			}
		}
	}

	nullPct := 0.0
	if total := rows * cols; total > 0 {
		nullPct = float64(nullCells) / float64(total) * 100
	}

	completeness := 100 - nullPct

	criticalNulls := 0
	for _, col := range criticalColumns {
		if !hasColumn(batch, col) {
			continue
		}
		for _, rec := range batch.Records {
			if rec[col].IsMissing() {
				criticalNulls++
			}
		}
	}

	penalty := 0.0
	if rows > 0 {
		penalty = float64(criticalNulls) / float64(rows) * criticalPenaltyWeight
	}

	return models.QualityReport{
		TotalRows:         rows,
		TotalColumns:      cols,
		NullCells:         nullCells,
		NullPercentage:    round2(nullPct),
		ZeroRows:          zeroRows(batch),
		CompletenessScore: round2(completeness),
		CriticalPenalty:   round2(penalty),
		FinalQualityScore: round2(math.Max(0, completeness-penalty)),
	}
}

// zeroRows counts rows whose numeric columns are all exactly zero. A column
// is numeric when it holds at least one number and nothing but numbers or
// missing cells; rows with no numeric columns never count, and a missing
// cell in a numeric column disqualifies the row.
func zeroRows(batch *models.SourceBatch) int {
	var numericCols []string
	for _, col := range batch.Columns {
		seenNumber := false
		numericOnly := true
		for _, rec := range batch.Records {
			switch rec[col].Kind {
			case models.KindNumber:
				seenNumber = true
			case models.KindMissing:
			default:
				numericOnly = false
			}
			if !numericOnly {
				break
			}
		}
		if seenNumber && numericOnly {
			numericCols = append(numericCols, col)
		}
	}
	if len(numericCols) == 0 {
		return 0
	}

	count := 0
	for _, rec := range batch.Records {
		allZero := true
		for _, col := range numericCols {
			v := rec[col]
			if v.Kind != models.KindNumber || v.Number != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			count++
		}
	}
	return count
}

func hasColumn(batch *models.SourceBatch, name string) bool {
	for _, col := range batch.Columns {
		if col == name {
			return true
		}
	}
	return false
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
