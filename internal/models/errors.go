package models

// APIError is the standardized error response format for the API.
type APIError struct {
	Code    string      `json:"code"`              // Application-specific error code (e.g., "VALIDATION_ERROR")
	Message string      `json:"message"`           // Human-readable message describing the error
	Details interface{} `json:"details,omitempty"` // Optional field for additional error details
}

// Predefined application-specific error codes
const (
	// Generic Errors
	ErrorCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrorCodeRequestTimeout      = "REQUEST_TIMEOUT"

	// Input Validation & Data Errors
	ErrorCodeValidation      = "VALIDATION_ERROR"  // General validation failure
	ErrorCodeInvalidIDFormat = "INVALID_ID_FORMAT" // e.g., non-numeric DPD path param

	// Resource Specific Errors
	ErrorCodeReportNotFound = "REPORT_NOT_FOUND"

	// Pipeline Errors
	ErrorCodeIngestionFailed = "INGESTION_FAILED" // folder listing failed, run aborted
)
