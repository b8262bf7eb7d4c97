package crm

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hollis/dealflow/internal/recordstore"
)

const taskCollection = "task_c"

// RefKind discriminates the entity a task points at.
type RefKind uint8

// Entity reference kinds.
const (
	RefNone RefKind = iota
	RefContact
	RefDeal
)

// EntityRef is a task's reference to its related entity, either a contact,
// a deal, or nothing. The store keeps it as an untyped (type string, id)
// pair with no integrity enforcement; decoding turns that pair into this
// tagged form so resolution is exhaustive.
type EntityRef struct {
	Kind RefKind
	ID   int64
}

func refFromWire(kind string, id *int64) EntityRef {
	if id == nil {
		return EntityRef{}
	}
	switch kind {
	case "contact":
		return EntityRef{Kind: RefContact, ID: *id}
	case "deal":
		return EntityRef{Kind: RefDeal, ID: *id}
	}
	return EntityRef{}
}

// wire returns the store representation of the reference. Kind RefNone maps
// to an empty type string and a null id.
func (r EntityRef) wire() (string, any) {
	switch r.Kind {
	case RefContact:
		return "contact", r.ID
	case RefDeal:
		return "deal", r.ID
	}
	return "", nil
}

// Task is a CRM task record.
type Task struct {
	ID          int64
	Description string
	DueDate     string
	Completed   bool
	Related     EntityRef
	CreatedOn   string
	ModifiedOn  string
}

type taskWire struct {
	ID          int64  `json:"Id"`
	Description string `json:"description_c"`
	DueDate     string `json:"due_date_c"`
	Completed   bool   `json:"completed_c"`
	RelatedType string `json:"related_entity_type_c"`
	RelatedID   *int64 `json:"related_entity_id_c"`
	CreatedOn   string `json:"CreatedOn,omitempty"`
	ModifiedOn  string `json:"ModifiedOn,omitempty"`
}

// UnmarshalJSON decodes the store record and normalizes the related-entity
// pair into an EntityRef.
func (t *Task) UnmarshalJSON(b []byte) error {
	var w taskWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = Task{
		ID:          w.ID,
		Description: w.Description,
		DueDate:     w.DueDate,
		Completed:   w.Completed,
		Related:     refFromWire(w.RelatedType, w.RelatedID),
		CreatedOn:   w.CreatedOn,
		ModifiedOn:  w.ModifiedOn,
	}
	return nil
}

// MarshalJSON emits the store record shape, keeping Task symmetric for API
// responses.
func (t Task) MarshalJSON() ([]byte, error) {
	kind, id := t.Related.wire()
	w := struct {
		ID          int64  `json:"Id"`
		Description string `json:"description_c"`
		DueDate     string `json:"due_date_c"`
		Completed   bool   `json:"completed_c"`
		RelatedType string `json:"related_entity_type_c"`
		RelatedID   any    `json:"related_entity_id_c"`
		CreatedOn   string `json:"CreatedOn,omitempty"`
		ModifiedOn  string `json:"ModifiedOn,omitempty"`
	}{t.ID, t.Description, t.DueDate, t.Completed, kind, id, t.CreatedOn, t.ModifiedOn}
	return json.Marshal(w)
}

// TaskDraft carries the caller-editable fields of a task.
type TaskDraft struct {
	Description string
	DueDate     string
	Completed   bool
	Related     EntityRef
}

func (d TaskDraft) record() map[string]any {
	kind, id := d.Related.wire()
	return map[string]any{
		"description_c":         d.Description,
		"due_date_c":            d.DueDate,
		"completed_c":           d.Completed,
		"related_entity_type_c": kind,
		"related_entity_id_c":   id,
	}
}

var taskFields = []recordstore.Field{
	{Name: "description_c"},
	{Name: "due_date_c"},
	{Name: "completed_c"},
	{Name: "related_entity_type_c"},
	{Name: "related_entity_id_c"},
}

// TaskService provides CRUD over the task collection.
type TaskService struct {
	svc Service[Task]
}

// NewTaskService creates a task service. It panics when client is nil.
func NewTaskService(client recordstore.Client, log *slog.Logger, sink EventSink) *TaskService {
	return &TaskService{svc: newService[Task](client, log, sink, taskCollection, taskFields)}
}

// GetAll returns every task, or an empty slice on remote failure.
func (s *TaskService) GetAll(ctx context.Context) []Task {
	return s.svc.GetAll(ctx)
}

// GetByID returns one task, or nil on remote failure.
func (s *TaskService) GetByID(ctx context.Context, id int64) *Task {
	return s.svc.GetByID(ctx, id)
}

// Create persists a new task and returns the stored record, or nil.
func (s *TaskService) Create(ctx context.Context, d TaskDraft) *Task {
	return s.svc.Create(ctx, d.record())
}

// Update re-sends the full task field set for id.
func (s *TaskService) Update(ctx context.Context, id int64, d TaskDraft) *Task {
	rec := d.record()
	rec["Id"] = id
	return s.svc.Update(ctx, rec)
}

// Delete removes the task. False covers every failure mode.
func (s *TaskService) Delete(ctx context.Context, id int64) bool {
	return s.svc.Delete(ctx, id)
}
