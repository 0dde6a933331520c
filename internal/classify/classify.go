// Package classify infers the semantic source type of an incoming file from
// its name and carries the static routing contracts: destination table,
// required columns and upsert conflict keys per type.
package classify

import (
	"strings"

	"credit-engine/internal/models"
)

// rule pairs a source type with its filename keywords. Rules are evaluated
// in declaration order and the first match wins; keep the order stable, it
// is part of the classification contract for ambiguous filenames.
type rule struct {
	Type     models.SourceType
	Keywords []string
}

var rules = []rule{
	{models.SourcePortfolio, []string{"portfolio", "portafolio", "balances"}},
	{models.SourceFacility, []string{"facility", "facilities", "linea", "credito", "limite"}},
	{models.SourceCustomer, []string{"customer", "cliente", "clients"}},
	{models.SourcePayment, []string{"payment", "pago", "pagos", "cobro"}},
	{models.SourceRisk, []string{"risk", "riesgo", "dpd", "mora"}},
	{models.SourceRevenue, []string{"revenue", "ingreso", "ingresos"}},
	{models.SourceCollections, []string{"collection", "cobranza", "recuperacion"}},
	{models.SourceMarketing, []string{"marketing", "adquisicion", "canal"}},
	{models.SourceIndustry, []string{"industry", "industria", "sector"}},
}

var tables = map[models.SourceType]string{
	models.SourcePortfolio:   "raw_portfolios",
	models.SourceFacility:    "raw_facilities",
	models.SourceCustomer:    "raw_customers",
	models.SourcePayment:     "raw_payments",
	models.SourceRisk:        "raw_risk_events",
	models.SourceRevenue:     "raw_revenue",
	models.SourceCollections: "raw_collections",
	models.SourceMarketing:   "raw_marketing",
	models.SourceIndustry:    "raw_industry",
}

var requiredColumns = map[models.SourceType][]string{
	models.SourcePortfolio:   {"customer_id", "balance", "date"},
	models.SourceFacility:    {"facility_id", "customer_id", "limit"},
	models.SourceCustomer:    {"customer_id", "name"},
	models.SourcePayment:     {"payment_id", "customer_id", "amount", "date"},
	models.SourceRisk:        {"customer_id", "dpd", "date"},
	models.SourceRevenue:     {"customer_id", "revenue", "date"},
	models.SourceCollections: {"customer_id", "collected_amount", "date"},
	models.SourceMarketing:   {"customer_id", "channel", "acquisition_date"},
	models.SourceIndustry:    {"customer_id", "industry_code"},
}

// conflictKeys maps a destination table to the business key used for upsert
// conflict resolution when the table has no generic identifier column.
var conflictKeys = map[string][]string{
	"raw_portfolios":  {"workbook_name", "portfolio_name"},
	"raw_facilities":  {"facility_code"},
	"raw_customers":   {"customer_code"},
	"raw_payments":    {"payment_code"},
	"raw_risk_events": {"customer_code", "event_date", "event_type"},
}

// Detect infers the source type from the filename alone, case-insensitive
// substring match against the keyword rules. Returns SourceUnknown when no
// rule matches.
func Detect(filename string) models.SourceType {
	lower := strings.ToLower(filename)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Type
			}
		}
	}
	return models.SourceUnknown
}

// TableFor maps a source type to its destination table. Unknown types route
// to the fallback table.
func TableFor(t models.SourceType) string {
	if name, ok := tables[t]; ok {
		return name
	}
	return "raw_unknown"
}

// RequiredColumns returns the column contract for a source type; nil for
// unknown types, which carry no contract.
func RequiredColumns(t models.SourceType) []string {
	return requiredColumns[t]
}

// Validate checks the batch against the required-column contract of the
// source type. Unknown types are always valid.
func Validate(batch *models.SourceBatch, t models.SourceType) (bool, []string) {
	required, ok := requiredColumns[t]
	if !ok {
		return true, nil
	}
	have := make(map[string]bool, len(batch.Columns))
	for _, col := range batch.Columns {
		have[col] = true
	}
	var missing []string
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	return len(missing) == 0, missing
}

// ConflictKeys selects the upsert conflict key for a destination table given
// the columns actually present in the batch: the generic "id" column when
// present, otherwise the table's business key when all of its columns are
// present, otherwise none (plain insert).
func ConflictKeys(table string, columns []string) []string {
	have := make(map[string]bool, len(columns))
	for _, col := range columns {
		have[col] = true
	}
	if have["id"] {
		return []string{"id"}
	}
	keys, ok := conflictKeys[table]
	if !ok {
		return nil
	}
	for _, k := range keys {
		if !have[k] {
			return nil
		}
	}
	return keys
}
