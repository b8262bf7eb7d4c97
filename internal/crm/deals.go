package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollis/dealflow/internal/functions"
	"github.com/hollis/dealflow/internal/metrics"
	"github.com/hollis/dealflow/internal/recordstore"
)

const dealCollection = "deal_c"

// DealStatus is the pipeline stage of a deal.
type DealStatus string

// The four valid deal statuses. No other values are persisted.
const (
	StatusLead        DealStatus = "lead"
	StatusNegotiation DealStatus = "negotiation"
	StatusWon         DealStatus = "won"
	StatusLost        DealStatus = "lost"
)

// Valid reports whether s is one of the enumerated statuses.
func (s DealStatus) Valid() bool {
	switch s {
	case StatusLead, StatusNegotiation, StatusWon, StatusLost:
		return true
	}
	return false
}

// ContactRef is a deal's reference to its contact. The store returns either
// an expanded {Id, Name} object or a bare integer id depending on whether it
// has expanded the lookup; decoding normalizes both shapes here so nothing
// downstream re-implements the disambiguation.
type ContactRef struct {
	ID       int64
	Name     string
	Expanded bool
}

// UnmarshalJSON accepts an expanded reference object, a bare id, or null.
func (r *ContactRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = ContactRef{}
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			ID   int64  `json:"Id"`
			Name string `json:"Name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*r = ContactRef{ID: obj.ID, Name: obj.Name, Expanded: true}
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*r = ContactRef{ID: id}
	return nil
}

// MarshalJSON always emits the bare id; expansion is a read-side shape.
func (r ContactRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// Deal is a CRM deal record.
type Deal struct {
	ID         int64      `json:"Id"`
	Name       string     `json:"name_c"`
	Contact    ContactRef `json:"contact_id_c"`
	Value      float64    `json:"value_c"`
	Status     DealStatus `json:"status_c"`
	Notes      string     `json:"notes_c"`
	CreatedOn  string     `json:"CreatedOn,omitempty"`
	ModifiedOn string     `json:"ModifiedOn,omitempty"`
}

// DealDraft carries the caller-editable fields of a deal. ContactName is
// optional display context for the email pipeline only; it is never
// persisted.
type DealDraft struct {
	Name        string
	ContactID   int64
	Value       float64
	Status      DealStatus
	Notes       string
	ContactName string
}

func (d DealDraft) record() map[string]any {
	return map[string]any{
		"name_c":       d.Name,
		"contact_id_c": d.ContactID,
		"value_c":      d.Value,
		"status_c":     d.Status,
		"notes_c":      d.Notes,
	}
}

var dealFields = []recordstore.Field{
	{Name: "name_c"},
	{Name: "value_c"},
	{Name: "status_c"},
	{Name: "notes_c"},
	{Name: "contact_id_c", Reference: "name_c"},
}

// DealService provides CRUD over the deal collection plus the deal-won
// email pipeline.
type DealService struct {
	svc     Service[Deal]
	invoker functions.Invoker
	emailFn string
	now     func() time.Time
}

// NewDealService creates a deal service. invoker and emailFn configure the
// email generation side effect; either may be empty, which disables the
// pipeline without affecting updates. Panics when client is nil.
func NewDealService(client recordstore.Client, invoker functions.Invoker, emailFn string, log *slog.Logger, sink EventSink) *DealService {
	return &DealService{
		svc:     newService[Deal](client, log, sink, dealCollection, dealFields),
		invoker: invoker,
		emailFn: emailFn,
		now:     time.Now,
	}
}

// GetAll returns every deal, or an empty slice on remote failure.
func (s *DealService) GetAll(ctx context.Context) []Deal {
	return s.svc.GetAll(ctx)
}

// GetByID returns one deal, or nil on remote failure.
func (s *DealService) GetByID(ctx context.Context, id int64) *Deal {
	return s.svc.GetByID(ctx, id)
}

// Create persists a new deal and re-fetches it by the assigned id before
// returning, so the caller always observes a fully expanded record
// (including the contact reference the store may expand lazily). A draft
// with no status enters the pipeline as a lead; updates never apply that
// default, an omitted status is written through as empty.
func (s *DealService) Create(ctx context.Context, d DealDraft) *Deal {
	if d.Status == "" {
		d.Status = StatusLead
	}
	created := s.svc.Create(ctx, d.record())
	if created == nil {
		return nil
	}
	return s.GetByID(ctx, created.ID)
}

// Update re-sends the full deal field set for id. Before the write it reads
// the currently persisted status; when the status moves onto won from any
// other value it invokes the email generation function and, on success,
// appends the generated text to the outgoing notes. Every side-effect
// failure mode is non-fatal: the write proceeds with the caller's notes
// untouched.
func (s *DealService) Update(ctx context.Context, id int64, d DealDraft) *Deal {
	var oldStatus DealStatus
	if current := s.GetByID(ctx, id); current != nil {
		oldStatus = current.Status
	}

	rec := d.record()
	rec["Id"] = id

	if oldStatus != StatusWon && d.Status == StatusWon {
		metrics.ObserveWonTransition()
		if s.svc.sink != nil {
			s.svc.sink.DealWon(id, d.Name)
		}
		if notes, ok := s.generateEmailNotes(ctx, d); ok {
			rec["notes_c"] = notes
		}
	}

	return s.svc.Update(ctx, rec)
}

// Delete removes the deal. False covers every failure mode.
func (s *DealService) Delete(ctx context.Context, id int64) bool {
	return s.svc.Delete(ctx, id)
}

// generateEmailNotes invokes the email function and returns the caller's
// notes with the generated block appended. ok is false whenever the notes
// should be left untouched.
func (s *DealService) generateEmailNotes(ctx context.Context, d DealDraft) (string, bool) {
	if s.invoker == nil || s.emailFn == "" {
		s.svc.log.Info("deal email generation skipped: function runtime not configured",
			slog.Int64("contact_id", d.ContactID))
		return "", false
	}

	contactName := d.ContactName
	if contactName == "" {
		contactName = "Valued Customer"
	}

	res, err := s.invoker.Invoke(ctx, s.emailFn, functions.EmailRequest{
		DealName:    d.Name,
		DealValue:   d.Value,
		ContactName: contactName,
	})
	if err != nil {
		s.svc.log.Info("deal email generation failed",
			slog.String("function", s.emailFn),
			slog.String("error", err.Error()))
		return "", false
	}
	if !res.Success || res.Email == "" {
		s.svc.log.Info("deal email generation returned no usable email",
			slog.String("function", s.emailFn),
			slog.String("response", string(res.Raw)))
		return "", false
	}

	ts := s.now().Format("2006-01-02 15:04:05")
	block := fmt.Sprintf("\n\n--- AI Generated Email (%s) ---\n%s\n--- End of Generated Email ---", ts, res.Email)
	return d.Notes + block, true
}
