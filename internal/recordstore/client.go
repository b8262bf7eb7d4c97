// Package recordstore defines the client abstraction for the remote record
// store that acts as the system of record for all CRM collections.
package recordstore

import (
	"context"
	"encoding/json"
)

// Field declares one projected field for a fetch. Reference names a display
// field to expand when the declared field is a lookup into another collection.
type Field struct {
	Name      string `json:"name"`
	Reference string `json:"reference,omitempty"`
}

// FetchOptions carries the field projection for fetch and get-by-id calls.
type FetchOptions struct {
	Fields []Field `json:"fields"`
}

// RecordPayload is the body for create and update calls. Each record is a
// flat map of remote field names to values; updates carry the record "Id".
type RecordPayload struct {
	Records []map[string]any `json:"records"`
}

// ItemResult is the per-record outcome inside a batch envelope.
type ItemResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope is the uniform response wrapper returned by every store call.
// Fetch-style calls populate Data; batch mutations populate Results.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Results []ItemResult    `json:"results,omitempty"`
}

// Client is the remote record store handle. Implementations must transmit
// record identifiers as integers and must never interpret envelope contents;
// mapping envelope and item failures to caller-visible results is the
// service layer's job.
type Client interface {
	FetchRecords(ctx context.Context, collection string, opts FetchOptions) (*Envelope, error)
	GetRecordByID(ctx context.Context, collection string, id int64, opts FetchOptions) (*Envelope, error)
	CreateRecord(ctx context.Context, collection string, payload RecordPayload) (*Envelope, error)
	UpdateRecord(ctx context.Context, collection string, payload RecordPayload) (*Envelope, error)
	DeleteRecord(ctx context.Context, collection string, ids []int64) (*Envelope, error)
}
