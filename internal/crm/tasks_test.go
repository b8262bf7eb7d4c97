package crm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hollis/dealflow/internal/testutil"
)

func TestTaskDecodesRelatedEntityPair(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want EntityRef
	}{
		{"contact", `{"Id":1,"related_entity_type_c":"contact","related_entity_id_c":7}`, EntityRef{Kind: RefContact, ID: 7}},
		{"deal", `{"Id":2,"related_entity_type_c":"deal","related_entity_id_c":10}`, EntityRef{Kind: RefDeal, ID: 10}},
		{"none", `{"Id":3,"related_entity_type_c":"","related_entity_id_c":null}`, EntityRef{}},
		{"id without recognized type", `{"Id":4,"related_entity_type_c":"invoice","related_entity_id_c":5}`, EntityRef{}},
		{"type without id", `{"Id":5,"related_entity_type_c":"contact","related_entity_id_c":null}`, EntityRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var task Task
			if err := json.Unmarshal([]byte(tt.raw), &task); err != nil {
				t.Fatal(err)
			}
			if task.Related != tt.want {
				t.Errorf("related = %+v, want %+v", task.Related, tt.want)
			}
		})
	}
}

func TestTaskMarshalRoundTrip(t *testing.T) {
	in := Task{ID: 9, Description: "Call Ada", DueDate: "2024-03-15", Related: EntityRef{Kind: RefContact, ID: 7}}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Task
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestTaskCreatePayloadDefaults(t *testing.T) {
	store := &testutil.FakeStore{}
	svc := NewTaskService(store, nil, nil)

	created := svc.Create(context.Background(), TaskDraft{Description: "Call Ada"})
	if created == nil {
		t.Fatal("create returned nil")
	}

	rec := store.Record("task_c", created.ID)
	if rec["completed_c"] != false {
		t.Errorf("completed = %v, want false", rec["completed_c"])
	}
	if rec["related_entity_type_c"] != "" {
		t.Errorf("related type = %v, want empty", rec["related_entity_type_c"])
	}
	if rec["related_entity_id_c"] != nil {
		t.Errorf("related id = %v, want null", rec["related_entity_id_c"])
	}
}

func TestTaskUpdateTogglesCompletion(t *testing.T) {
	store := &testutil.FakeStore{}
	id := store.Seed("task_c", map[string]any{
		"description_c": "Call Ada", "due_date_c": "2024-03-15", "completed_c": false,
		"related_entity_type_c": "contact", "related_entity_id_c": 7,
	})
	svc := NewTaskService(store, nil, nil)

	updated := svc.Update(context.Background(), id, TaskDraft{
		Description: "Call Ada", DueDate: "2024-03-15", Completed: true,
		Related: EntityRef{Kind: RefContact, ID: 7},
	})
	if updated == nil {
		t.Fatal("update returned nil")
	}
	if !updated.Completed {
		t.Error("completed not set")
	}
	if updated.Related != (EntityRef{Kind: RefContact, ID: 7}) {
		t.Errorf("related = %+v", updated.Related)
	}
}
