package models

import (
	"fmt"
	"time"
)

// SourceType identifies the semantic kind of an ingested file. The set is
// closed; files that match no known kind are SourceUnknown.
type SourceType string

const (
	SourcePortfolio   SourceType = "portfolio"
	SourceFacility    SourceType = "facility"
	SourceCustomer    SourceType = "customer"
	SourcePayment     SourceType = "payment"
	SourceRisk        SourceType = "risk"
	SourceRevenue     SourceType = "revenue"
	SourceCollections SourceType = "collections"
	SourceMarketing   SourceType = "marketing"
	SourceIndustry    SourceType = "industry"
	SourceUnknown     SourceType = "unknown"
)

// ValueKind discriminates a normalized cell value. Missing is its own kind so
// that a failed coercion is never confused with a legitimate zero.
type ValueKind int

const (
	KindMissing ValueKind = iota
	KindNumber
	KindTime
	KindText
)

// Value is one normalized cell. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind
	Number float64
	Time   time.Time
	Text   string
}

func MissingValue() Value          { return Value{Kind: KindMissing} }
func NumberValue(n float64) Value  { return Value{Kind: KindNumber, Number: n} }
func TimeValue(t time.Time) Value  { return Value{Kind: KindTime, Time: t} }
func TextValue(s string) Value     { return Value{Kind: KindText, Text: s} }

// IsMissing reports whether the cell failed coercion or was empty.
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Interface converts the value to the representation handed to the
// persistence layer. Missing cells become nil (SQL NULL).
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindTime:
		return v.Time
	case KindText:
		return v.Text
	default:
		return nil
	}
}

// fingerprint is a stable textual form used for row deduplication.
func (v Value) fingerprint() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("n:%g", v.Number)
	case KindTime:
		return "t:" + v.Time.UTC().Format(time.RFC3339Nano)
	case KindText:
		return "s:" + v.Text
	default:
		return "-"
	}
}

// RawRecord is one normalized row: canonical column name to typed value.
type RawRecord map[string]Value

// Fingerprint renders the record over the given column order. Two records
// with equal fingerprints are duplicates.
func (r RawRecord) Fingerprint(columns []string) string {
	out := ""
	for _, col := range columns {
		out += col + "=" + r[col].fingerprint() + "|"
	}
	return out
}

// ToMap converts the record for the persistence collaborator.
func (r RawRecord) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(r))
	for col, v := range r {
		m[col] = v.Interface()
	}
	return m
}

// RawTable is the parser output: header labels as found in the file plus the
// string cells, before any normalization.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// SourceBatch is a normalized table ready for validation, scoring and
// persistence. It is not mutated after quality scoring.
type SourceBatch struct {
	FileName          string
	SourceType        SourceType
	Columns           []string
	Records           []RawRecord
	DuplicatesRemoved int
	IngestedAt        time.Time
}

// QualityReport summarizes the completeness of a SourceBatch. Immutable once
// computed.
type QualityReport struct {
	TotalRows         int     `json:"total_rows"`
	TotalColumns      int     `json:"total_columns"`
	NullCells         int     `json:"null_cells"`
	NullPercentage    float64 `json:"null_percentage"`
	ZeroRows          int     `json:"zero_rows"`
	CompletenessScore float64 `json:"completeness_score"`
	CriticalPenalty   float64 `json:"critical_penalty"`
	FinalQualityScore float64 `json:"final_quality_score"`
}

// FileStatus is the terminal state of one file within a run.
type FileStatus string

const (
	StatusSuccess FileStatus = "success"
	StatusFailed  FileStatus = "failed"
	StatusSkipped FileStatus = "skipped"
)

// FileDetail records the outcome for a single file.
type FileDetail struct {
	Filename          string     `json:"filename"`
	Status            FileStatus `json:"status"`
	Message           string     `json:"message"`
	RowsProcessed     int        `json:"rows_processed"`
	DuplicatesRemoved int        `json:"duplicates_removed"`
	QualityScore      *float64   `json:"quality_score,omitempty"`
}

// IngestionReport aggregates one pipeline run. Append-only while the run is
// in flight, read-only afterwards.
type IngestionReport struct {
	RunID               string                   `json:"run_id"`
	TotalFiles          int                      `json:"total_files"`
	Successful          int                      `json:"successful"`
	Failed              int                      `json:"failed"`
	Skipped             int                      `json:"skipped"`
	Details             []FileDetail             `json:"details"`
	QualityScores       map[string]QualityReport `json:"quality_scores"`
	MLFeaturesRefreshed bool                     `json:"ml_features_refreshed"`
	Error               string                   `json:"error,omitempty"`
}
