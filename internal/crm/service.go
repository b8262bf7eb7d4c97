// Package crm implements the record-synchronization layer: typed entity
// services over the remote record store, reference resolution, and task
// priority classification.
//
// Service methods never return errors for remote-failure modes. A failed
// fetch yields an empty slice, a failed get/create/update yields nil, and a
// failed delete yields false; every failure is logged and reported to the
// configured event sink exactly once. Only constructing a service without a
// store client panics, since no operation could ever proceed.
package crm

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hollis/dealflow/internal/metrics"
	"github.com/hollis/dealflow/internal/recordstore"
)

// EventSink receives noteworthy service events. Implementations must be
// safe for concurrent use. A nil sink is valid and discards events.
type EventSink interface {
	// RemoteFailure records a failed remote store call.
	RemoteFailure(collection, op, message string)
	// DealWon records a deal status transition landing on won.
	DealWon(id int64, name string)
}

// Service is the generic CRUD facade over one remote collection.
// Typed entity services embed it and translate drafts to record payloads.
type Service[T any] struct {
	client     recordstore.Client
	log        *slog.Logger
	sink       EventSink
	collection string
	fields     []recordstore.Field
}

func newService[T any](client recordstore.Client, log *slog.Logger, sink EventSink, collection string, fields []recordstore.Field) Service[T] {
	if client == nil {
		panic("crm: " + collection + ": record store client is not initialized")
	}
	if log == nil {
		log = slog.Default()
	}
	return Service[T]{
		client:     client,
		log:        log,
		sink:       sink,
		collection: collection,
		fields:     fields,
	}
}

// GetAll fetches all records of the collection projected to the declared
// fields. On any remote failure it returns an empty slice.
func (s *Service[T]) GetAll(ctx context.Context) []T {
	env, err := s.client.FetchRecords(ctx, s.collection, recordstore.FetchOptions{Fields: s.fields})
	if err != nil {
		s.fail("fetch", err.Error())
		return []T{}
	}
	if !env.Success {
		s.fail("fetch", env.Message)
		return []T{}
	}
	if len(env.Data) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		s.fail("fetch", "decode records: "+err.Error())
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// GetByID fetches a single record, or nil on any remote failure.
func (s *Service[T]) GetByID(ctx context.Context, id int64) *T {
	env, err := s.client.GetRecordByID(ctx, s.collection, id, recordstore.FetchOptions{Fields: s.fields})
	if err != nil {
		s.fail("get", err.Error())
		return nil
	}
	if !env.Success {
		s.fail("get", env.Message)
		return nil
	}
	if len(env.Data) == 0 {
		return nil
	}
	return s.decode("get", env.Data)
}

// Create submits a single-record create and returns the stored record, or
// nil when either the envelope or the record's own result reports failure.
func (s *Service[T]) Create(ctx context.Context, record map[string]any) *T {
	env, err := s.client.CreateRecord(ctx, s.collection, recordstore.RecordPayload{Records: []map[string]any{record}})
	if err != nil {
		s.fail("create", err.Error())
		return nil
	}
	return s.firstResult("create", env)
}

// Update re-sends the full field set for one record. The record map must
// carry the "Id" key; fields absent from the map are cleared remotely, not
// retained. Failure handling matches Create.
func (s *Service[T]) Update(ctx context.Context, record map[string]any) *T {
	env, err := s.client.UpdateRecord(ctx, s.collection, recordstore.RecordPayload{Records: []map[string]any{record}})
	if err != nil {
		s.fail("update", err.Error())
		return nil
	}
	return s.firstResult("update", env)
}

// Delete removes one record by id. It returns true only when the envelope
// and the single delete result both report success.
func (s *Service[T]) Delete(ctx context.Context, id int64) bool {
	env, err := s.client.DeleteRecord(ctx, s.collection, []int64{id})
	if err != nil {
		s.fail("delete", err.Error())
		return false
	}
	if !env.Success {
		s.fail("delete", env.Message)
		return false
	}
	if len(env.Results) == 0 {
		return false
	}
	res := env.Results[0]
	if !res.Success {
		metrics.ObserveItemFailure(s.collection, "delete")
		s.fail("delete", res.Message)
		return false
	}
	return true
}

// Collection returns the remote collection name.
func (s *Service[T]) Collection() string {
	return s.collection
}

func (s *Service[T]) firstResult(op string, env *recordstore.Envelope) *T {
	if !env.Success {
		s.fail(op, env.Message)
		return nil
	}
	if len(env.Results) == 0 {
		return nil
	}
	res := env.Results[0]
	if !res.Success {
		metrics.ObserveItemFailure(s.collection, op)
		s.fail(op, res.Message)
		return nil
	}
	return s.decode(op, res.Data)
}

func (s *Service[T]) decode(op string, data json.RawMessage) *T {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		s.fail(op, "decode record: "+err.Error())
		return nil
	}
	return &out
}

func (s *Service[T]) fail(op, message string) {
	s.log.Error("remote store call failed",
		slog.String("collection", s.collection),
		slog.String("op", op),
		slog.String("message", message))
	if s.sink != nil {
		s.sink.RemoteFailure(s.collection, op, message)
	}
}
