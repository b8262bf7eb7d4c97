// Package testutil provides shared test doubles for the remote record store
// and the function runtime.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hollis/dealflow/internal/functions"
	"github.com/hollis/dealflow/internal/recordstore"
)

// Call records one store invocation for assertions.
type Call struct {
	Op         string
	Collection string
	ID         int64
	Payload    recordstore.RecordPayload
	IDs        []int64
}

// FakeStore is an in-memory recordstore.Client with failure knobs.
//
// The zero value is ready to use. Seed records before exercising services;
// set Err, EnvelopeFailure or ItemFailure to script the three remote failure
// modes.
type FakeStore struct {
	mu    sync.Mutex
	colls map[string]map[int64]map[string]any
	next  int64

	// Err makes every call return a transport error.
	Err error
	// EnvelopeFailure makes every envelope report success=false with this
	// message.
	EnvelopeFailure string
	// ItemFailure maps an operation ("create", "update", "delete") to an
	// item-level failure message for that operation.
	ItemFailure map[string]string

	Calls []Call
}

// Seed inserts a record and returns its assigned id.
func (f *FakeStore) Seed(collection string, record map[string]any) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	rec := cloneRecord(record)
	rec["Id"] = id
	f.coll(collection)[id] = rec
	return id
}

// Record returns a copy of the stored record, or nil.
func (f *FakeStore) Record(collection string, id int64) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.coll(collection)[id]
	if !ok {
		return nil
	}
	return cloneRecord(rec)
}

func (f *FakeStore) coll(name string) map[int64]map[string]any {
	if f.colls == nil {
		f.colls = make(map[string]map[int64]map[string]any)
	}
	if f.colls[name] == nil {
		f.colls[name] = make(map[int64]map[string]any)
	}
	return f.colls[name]
}

// FetchRecords implements recordstore.Client.
func (f *FakeStore) FetchRecords(_ context.Context, collection string, _ recordstore.FetchOptions) (*recordstore.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "fetch", Collection: collection})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.EnvelopeFailure != "" {
		return &recordstore.Envelope{Message: f.EnvelopeFailure}, nil
	}
	records := make([]map[string]any, 0, len(f.coll(collection)))
	for _, rec := range f.coll(collection) {
		records = append(records, rec)
	}
	data, _ := json.Marshal(records)
	return &recordstore.Envelope{Success: true, Data: data}, nil
}

// GetRecordByID implements recordstore.Client.
func (f *FakeStore) GetRecordByID(_ context.Context, collection string, id int64, _ recordstore.FetchOptions) (*recordstore.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "get", Collection: collection, ID: id})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.EnvelopeFailure != "" {
		return &recordstore.Envelope{Message: f.EnvelopeFailure}, nil
	}
	rec, ok := f.coll(collection)[id]
	if !ok {
		return &recordstore.Envelope{Message: fmt.Sprintf("record %d does not exist", id)}, nil
	}
	data, _ := json.Marshal(rec)
	return &recordstore.Envelope{Success: true, Data: data}, nil
}

// CreateRecord implements recordstore.Client.
func (f *FakeStore) CreateRecord(_ context.Context, collection string, payload recordstore.RecordPayload) (*recordstore.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "create", Collection: collection, Payload: payload})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.EnvelopeFailure != "" {
		return &recordstore.Envelope{Message: f.EnvelopeFailure}, nil
	}
	if msg, ok := f.ItemFailure["create"]; ok {
		return &recordstore.Envelope{Success: true, Results: []recordstore.ItemResult{{Message: msg}}}, nil
	}
	results := make([]recordstore.ItemResult, 0, len(payload.Records))
	for _, rec := range payload.Records {
		f.next++
		id := f.next
		stored := cloneRecord(rec)
		stored["Id"] = id
		f.coll(collection)[id] = stored
		data, _ := json.Marshal(stored)
		results = append(results, recordstore.ItemResult{Success: true, Data: data})
	}
	return &recordstore.Envelope{Success: true, Results: results}, nil
}

// UpdateRecord implements recordstore.Client.
func (f *FakeStore) UpdateRecord(_ context.Context, collection string, payload recordstore.RecordPayload) (*recordstore.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "update", Collection: collection, Payload: payload})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.EnvelopeFailure != "" {
		return &recordstore.Envelope{Message: f.EnvelopeFailure}, nil
	}
	if msg, ok := f.ItemFailure["update"]; ok {
		return &recordstore.Envelope{Success: true, Results: []recordstore.ItemResult{{Message: msg}}}, nil
	}
	results := make([]recordstore.ItemResult, 0, len(payload.Records))
	for _, rec := range payload.Records {
		id := asID(rec["Id"])
		if _, ok := f.coll(collection)[id]; !ok {
			results = append(results, recordstore.ItemResult{Message: fmt.Sprintf("record %d does not exist", id)})
			continue
		}
		stored := cloneRecord(rec)
		stored["Id"] = id
		f.coll(collection)[id] = stored
		data, _ := json.Marshal(stored)
		results = append(results, recordstore.ItemResult{Success: true, Data: data})
	}
	return &recordstore.Envelope{Success: true, Results: results}, nil
}

// DeleteRecord implements recordstore.Client. Deleting an id that does not
// exist yields an item-level failure, not an error.
func (f *FakeStore) DeleteRecord(_ context.Context, collection string, ids []int64) (*recordstore.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Op: "delete", Collection: collection, IDs: ids})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.EnvelopeFailure != "" {
		return &recordstore.Envelope{Message: f.EnvelopeFailure}, nil
	}
	if msg, ok := f.ItemFailure["delete"]; ok {
		return &recordstore.Envelope{Success: true, Results: []recordstore.ItemResult{{Message: msg}}}, nil
	}
	results := make([]recordstore.ItemResult, 0, len(ids))
	for _, id := range ids {
		if _, ok := f.coll(collection)[id]; !ok {
			results = append(results, recordstore.ItemResult{Message: fmt.Sprintf("record %d does not exist", id)})
			continue
		}
		delete(f.coll(collection), id)
		results = append(results, recordstore.ItemResult{Success: true})
	}
	return &recordstore.Envelope{Success: true, Results: results}, nil
}

func cloneRecord(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// asID coerces the id value a payload carries. Payload maps built by the
// services hold int64; JSON round trips produce float64.
func asID(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// InvokeCall records one function invocation.
type InvokeCall struct {
	Ref  string
	Body any
}

// FakeInvoker is a scriptable functions.Invoker.
type FakeInvoker struct {
	mu     sync.Mutex
	Err    error
	Result *functions.Result
	Calls  []InvokeCall
}

// Invoke implements functions.Invoker.
func (f *FakeInvoker) Invoke(_ context.Context, ref string, body any) (*functions.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, InvokeCall{Ref: ref, Body: body})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return &functions.Result{Success: true, Email: "Thank you for your business!"}, nil
}

// CallCount returns the number of recorded invocations.
func (f *FakeInvoker) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
