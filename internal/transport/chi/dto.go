package chi

import "encoding/json"

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeUnknownRecordType ErrorCode = "unknown_record_type"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeRewriteFailed     ErrorCode = "rewrite_failed"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeQuotaExceeded     ErrorCode = "quota_exceeded"
	ErrorCodeNotImplemented    ErrorCode = "not_implemented"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /search. Query and Tree are mutually exclusive;
// with neither, the empty tree compiles to the wildcard.
type SearchRequest struct {
	Query       *string         `json:"query,omitempty"`
	Tree        json.RawMessage `json:"tree,omitempty"`
	Models      []string        `json:"models,omitempty"`
	ResultClass string          `json:"result_class,omitempty"`
}

// SearchResultItem is one matched record.
type SearchResultItem struct {
	Type   string         `json:"type"`
	PK     string         `json:"pk"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Hits           int                `json:"hits"`
	Results        []SearchResultItem `json:"results"`
	ResultClass    string             `json:"result_class,omitempty"`
	RewrittenQuery *string            `json:"rewritten_query,omitempty"`
}

// RecordPayload identifies a record and optionally its field values.
type RecordPayload struct {
	Type   string         `json:"type"`
	PK     string         `json:"pk"`
	Fields map[string]any `json:"fields,omitempty"`
}

// UpdateRequest is the body of POST /update.
type UpdateRequest struct {
	Type    string          `json:"type"`
	Records []RecordPayload `json:"records"`
}

// ClearRequest is the body of POST /clear.
type ClearRequest struct {
	Models []string `json:"models,omitempty"`
}

// WarningResponse reports an operation this backend accepts and ignores.
type WarningResponse struct {
	Op      string `json:"op"`
	Warning string `json:"warning"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}
