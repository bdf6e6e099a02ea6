package dto

import (
	"errors"
	"strings"
)

// Validation errors
var (
	ErrEmptyStream     = errors.New("stream cannot be empty")
	ErrEmptyDocumentID = errors.New("document_id cannot be empty")
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrStreamTooLong   = errors.New("stream exceeds maximum length (4MB)")
)

// MaxStreamLength bounds one ingest request to prevent abuse.
const MaxStreamLength = 4 * 1024 * 1024

// IngestRequest carries one extractor tuple stream.
type IngestRequest struct {
	Stream     string `json:"stream" binding:"required"`
	DocumentID string `json:"document_id" binding:"required"`
}

// Validate performs validation on IngestRequest
func (r *IngestRequest) Validate() error {
	if strings.TrimSpace(r.Stream) == "" {
		return ErrEmptyStream
	}
	if len(r.Stream) > MaxStreamLength {
		return ErrStreamTooLong
	}
	if strings.TrimSpace(r.DocumentID) == "" {
		return ErrEmptyDocumentID
	}
	return nil
}

// IngestResponse reports what one stream contributed.
type IngestResponse struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
	Skipped       int `json:"skipped"`
}

// BuildCommunitiesResponse reports a community build.
type BuildCommunitiesResponse struct {
	Communities int      `json:"communities"`
	UIDs        []string `json:"uids"`
}

// DispatchReportsResponse reports an asynchronous report fan-out.
type DispatchReportsResponse struct {
	Dispatched int `json:"dispatched"`
}

// QueryRequest carries one global query.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Validate performs validation on QueryRequest
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// QueryResponse carries the synthesized answer.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the uniform error shape.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
