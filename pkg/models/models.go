package models

import (
	"encoding/json"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// CreateTraceRequest represents a request to register a new trace upload
type CreateTraceRequest struct {
	Body struct {
		SessionID   string `json:"session_id" minLength:"10" maxLength:"50" required:"true" doc:"Client session identifier"`
		Name        string `json:"name" minLength:"1" maxLength:"255" required:"true" doc:"Original file name of the export"`
		FileSize    int64  `json:"file_size" minimum:"1" required:"true" doc:"Export size in bytes"`
		MimeType    string `json:"mime_type" enum:"text/csv,text/plain,application/octet-stream" required:"true" doc:"Export MIME type"`
		MetadataRow int    `json:"metadata_row,omitempty" minimum:"0" doc:"1-based line holding the channel entries (server default when omitted)"`
		SkipRows    int    `json:"skip_rows,omitempty" minimum:"0" doc:"Lines preceding the numeric block (server default when omitted)"`
	}
}

// CreateTraceResponseBody is the body of the create trace response
type CreateTraceResponseBody struct {
	ID        string `json:"id" doc:"Trace unique identifier"`
	UploadURL string `json:"upload_url" doc:"Pre-signed URL for the file upload"`
	ExpiresIn int    `json:"expires_in" doc:"URL expiration time in seconds"`
}

// CreateTraceResponse represents the response from registering a trace
type CreateTraceResponse struct {
	Body CreateTraceResponseBody
}

// GetTraceStatusRequest represents a request to get trace status
type GetTraceStatusRequest struct {
	ID string `path:"id" doc:"Trace ID"`
}

// GetTraceStatusResponseBody is the body of the status response
type GetTraceStatusResponseBody struct {
	ID       string  `json:"id" doc:"Trace ID"`
	Status   string  `json:"status" enum:"pending,processing,completed,failed" doc:"Trace status"`
	Progress int     `json:"progress" minimum:"0" maximum:"100" doc:"Processing progress percentage"`
	Message  string  `json:"message,omitempty" doc:"Human-readable status message"`
	Error    *string `json:"error,omitempty" doc:"Failure reason when processing failed"`
}

// GetTraceStatusResponse represents the current status of a trace
type GetTraceStatusResponse struct {
	Body GetTraceStatusResponseBody
}

// GetTraceRowsRequest pages through the long-form rows of a processed trace
type GetTraceRowsRequest struct {
	ID      string `path:"id" doc:"Trace ID"`
	Channel int    `query:"channel" default:"-1" minimum:"-1" doc:"Only rows of this channel; -1 for all"`
	Limit   int    `query:"limit" default:"1000" minimum:"1" maximum:"100000" doc:"Maximum rows returned"`
	Offset  int    `query:"offset" default:"0" minimum:"0" doc:"Rows to skip"`
}

// GetTraceRowsResponseBody is the body of the rows response
type GetTraceRowsResponseBody struct {
	ID       string            `json:"id" doc:"Trace ID"`
	Columns  []string          `json:"columns" doc:"Column names in table order"`
	Channels []TraceChannel    `json:"channels" doc:"Channel metadata"`
	Rows     []json.RawMessage `json:"rows" doc:"Long-form rows keyed by column name"`
	Total    int               `json:"total" doc:"Rows matching the channel filter"`
}

// GetTraceRowsResponse returns long-form rows
type GetTraceRowsResponse struct {
	Body GetTraceRowsResponseBody
}

// StartProcessingRequest represents a request to start processing an uploaded export
type StartProcessingRequest struct {
	ID string `path:"id" doc:"Trace ID"`
}

// StartProcessingResponse represents the response from starting processing
type StartProcessingResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
	}
}

// ParseTraceRequest carries a metadata line and numeric block for an inline parse
type ParseTraceRequest struct {
	Body struct {
		Header string      `json:"header" minLength:"1" required:"true" doc:"Metadata line with ';'-separated channel entries"`
		Data   [][]float64 `json:"data" required:"true" doc:"Numeric rows of alternating time/value columns"`
	}
}

// ParseTraceResponseBody is the body of the inline parse response
type ParseTraceResponseBody struct {
	Columns  []string          `json:"columns" doc:"Column names in table order"`
	Channels []TraceChannel    `json:"channels" doc:"Channel metadata"`
	Rows     []json.RawMessage `json:"rows" doc:"Long-form rows keyed by column name"`
}

// ParseTraceResponse returns the long-form table of an inline parse
type ParseTraceResponse struct {
	Body ParseTraceResponseBody
}
