package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/RMahshie/tracelab/pkg/vcsv"
)

// Trace status values
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Trace represents an uploaded vcsv export (for internal use)
type Trace struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	ObjectKey   *string    `json:"object_key,omitempty"`
	MetadataRow int        `json:"metadata_row"`
	SkipRows    int        `json:"skip_rows"`
	ErrorMsg    *string    `json:"error_message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Layout returns the file layout recorded for the trace
func (t *Trace) Layout() vcsv.Layout {
	return vcsv.Layout{MetadataRow: t.MetadataRow, SkipRows: t.SkipRows}
}

// TraceChannel is the metadata record of one channel
type TraceChannel struct {
	Channel int            `json:"channel" doc:"0-based channel index"`
	Signal  string         `json:"signal" doc:"Signal name"`
	Params  map[string]any `json:"params" doc:"Channel parameters, integers and floats as parsed"`
}

// ChannelsFromRecords converts parsed records into API channel metadata
func ChannelsFromRecords(records []vcsv.Record) []TraceChannel {
	channels := make([]TraceChannel, len(records))
	for i, rec := range records {
		params := make(map[string]any, len(rec.Params))
		for _, p := range rec.Params {
			params[p.Key] = p.Value.Interface()
		}
		channels[i] = TraceChannel{Channel: i, Signal: rec.Signal, Params: params}
	}
	return channels
}

// EncodeRows renders long-form rows as flat JSON objects
func EncodeRows(rows []vcsv.Row) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		data, err := row.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}
