package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	SQL       string `json:"sql"`
	Params    []any  `json:"params,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// Validate validates the query request shape. SQL content validation
// happens in the engine; this only rejects nonsense envelopes.
func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SQL, validation.Required),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(100000)),
		validation.Field(&r.TimeoutMs, validation.Min(0), validation.Max(300000)),
	)
}

// IndexRequest is the body of POST /api/index.
type IndexRequest struct {
	Dir       string `json:"dir,omitempty"`
	Recursive bool   `json:"recursive"`
	Force     bool   `json:"force"`
	Rebuild   bool   `json:"rebuild"`
}

// FuzzyRequest is the body of POST /api/fuzzy.
type FuzzyRequest struct {
	Term      string   `json:"term"`
	Fields    []string `json:"fields,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// Validate validates the fuzzy request.
func (r FuzzyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Term, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&r.Limit, validation.Min(0), validation.Max(1000)),
	)
}
