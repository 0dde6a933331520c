// Package normalize canonicalizes column labels and coerces cell values into
// the typed shape the rest of the pipeline works with. Per-value coercion
// failures never surface as errors; they degrade to missing values.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"credit-engine/internal/models"
)

var (
	nonCanonical = regexp.MustCompile(`[^a-z0-9_]`)
	underscores  = regexp.MustCompile(`_+`)
	currency     = strings.NewReplacer("$", "", "₡", "", "€", "", "%", "", ",", "")
)

// Metadata columns stamped onto every batch. They are excluded from numeric
// coercion and the portfolio conflict key depends on workbook_name.
const (
	ColWorkbookName = "workbook_name"
	ColRefreshDate  = "refresh_date"
)

// dateLayouts accepted for date-indicating columns, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"02/01/2006",
}

// CanonicalColumn lowercases and trims a column label, converts spaces to
// underscores, replaces anything outside [a-z0-9_] with an underscore, and
// collapses runs of underscores.
func CanonicalColumn(label string) string {
	col := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(label)), " ", "_")
	col = nonCanonical.ReplaceAllString(col, "_")
	col = underscores.ReplaceAllString(col, "_")
	return strings.Trim(col, "_")
}

// isDateColumn reports whether a canonical column name indicates a date.
// Spanish-language sources use "fecha".
func isDateColumn(col string) bool {
	return strings.Contains(col, "date") || strings.Contains(col, "fecha")
}

// skipNumericCoercion reports whether a column keeps its textual values.
// Identifier and name columns are never coerced, nor are the stamped
// metadata columns.
func skipNumericCoercion(col string) bool {
	if col == ColWorkbookName || col == ColRefreshDate {
		return true
	}
	return strings.Contains(col, "id") || strings.Contains(col, "name")
}

// CoerceNumeric strips currency symbols ($, ₡, €), percent signs and
// thousands separators, then attempts a float parse. Unparsable input
// yields a missing value.
func CoerceNumeric(raw string) models.Value {
	cleaned := strings.TrimSpace(currency.Replace(raw))
	if cleaned == "" {
		return models.MissingValue()
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return models.MissingValue()
	}
	return models.NumberValue(n)
}

// CoerceDate parses a timestamp from the accepted layouts. Unparsable input
// yields a missing value.
func CoerceDate(raw string) models.Value {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return models.MissingValue()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return models.TimeValue(t)
		}
	}
	return models.MissingValue()
}

// canonicalColumns canonicalizes every label and disambiguates collisions so
// column names stay unique within the batch.
func canonicalColumns(labels []string) []string {
	seen := make(map[string]int, len(labels))
	out := make([]string, len(labels))
	for i, label := range labels {
		col := CanonicalColumn(label)
		if col == "" {
			col = fmt.Sprintf("column_%d", i+1)
		}
		seen[col]++
		if n := seen[col]; n > 1 {
			col = fmt.Sprintf("%s_%d", col, n)
			seen[col]++
		}
		out[i] = col
	}
	return out
}

// Normalize runs the full normalization pipeline over a parsed table:
// canonical column names, tolerant numeric coercion, date standardization,
// metadata stamping and deduplication. sourceName is the originating file
// name, recorded in the workbook_name column of every row.
func Normalize(table models.RawTable, sourceName string, sourceType models.SourceType) *models.SourceBatch {
	columns := canonicalColumns(table.Columns)
	now := time.Now().UTC()

	records := make([]models.RawRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		rec := make(models.RawRecord, len(columns)+2)
		for i, col := range columns {
			raw := ""
			if i < len(row) {
				raw = row[i]
			}
			rec[col] = coerceCell(col, raw)
		}
		rec[ColWorkbookName] = models.TextValue(sourceName)
		rec[ColRefreshDate] = models.TimeValue(now)
		records = append(records, rec)
	}

	columns = append(columns, ColWorkbookName, ColRefreshDate)

	deduped, removed := deduplicate(records, columns)

	return &models.SourceBatch{
		FileName:          sourceName,
		SourceType:        sourceType,
		Columns:           columns,
		Records:           deduped,
		DuplicatesRemoved: removed,
		IngestedAt:        now,
	}
}

// coerceCell applies the per-column coercion rules: date columns parse as
// timestamps, identifier/name columns stay textual, everything else is
// tolerantly coerced to numeric.
func coerceCell(col, raw string) models.Value {
	switch {
	case isDateColumn(col):
		return CoerceDate(raw)
	case skipNumericCoercion(col):
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return models.MissingValue()
		}
		return models.TextValue(trimmed)
	default:
		return CoerceNumeric(raw)
	}
}

// deduplicate drops rows identical across all columns, preserving first
// occurrence order, and reports how many were removed.
func deduplicate(records []models.RawRecord, columns []string) ([]models.RawRecord, int) {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		fp := rec.Fingerprint(columns)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
