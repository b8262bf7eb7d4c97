package crm

import (
	"context"
	"log/slog"

	"github.com/hollis/dealflow/internal/recordstore"
)

const contactCollection = "contact_c"

// Contact is a CRM contact record.
type Contact struct {
	ID              int64  `json:"Id"`
	Name            string `json:"name_c"`
	Company         string `json:"company_c"`
	Email           string `json:"email_c"`
	Phone           string `json:"phone_c"`
	LastContactDate string `json:"last_contact_date_c"`
	CreatedOn       string `json:"CreatedOn,omitempty"`
	ModifiedOn      string `json:"ModifiedOn,omitempty"`
}

// ContactDraft carries the caller-editable fields of a contact.
// Zero values are the declared defaults: every field persists as empty.
type ContactDraft struct {
	Name            string
	Company         string
	Email           string
	Phone           string
	LastContactDate string
}

func (d ContactDraft) record() map[string]any {
	return map[string]any{
		"name_c":              d.Name,
		"company_c":           d.Company,
		"email_c":             d.Email,
		"phone_c":             d.Phone,
		"last_contact_date_c": d.LastContactDate,
	}
}

var contactFields = []recordstore.Field{
	{Name: "name_c"},
	{Name: "company_c"},
	{Name: "email_c"},
	{Name: "phone_c"},
	{Name: "last_contact_date_c"},
}

// ContactService provides CRUD over the contact collection.
type ContactService struct {
	svc Service[Contact]
}

// NewContactService creates a contact service. It panics when client is nil.
func NewContactService(client recordstore.Client, log *slog.Logger, sink EventSink) *ContactService {
	return &ContactService{svc: newService[Contact](client, log, sink, contactCollection, contactFields)}
}

// GetAll returns every contact, or an empty slice on remote failure.
func (s *ContactService) GetAll(ctx context.Context) []Contact {
	return s.svc.GetAll(ctx)
}

// GetByID returns one contact, or nil on remote failure.
func (s *ContactService) GetByID(ctx context.Context, id int64) *Contact {
	return s.svc.GetByID(ctx, id)
}

// Create persists a new contact and returns the stored record, or nil.
func (s *ContactService) Create(ctx context.Context, d ContactDraft) *Contact {
	return s.svc.Create(ctx, d.record())
}

// Update re-sends the full contact field set for id and returns the stored
// record, or nil.
func (s *ContactService) Update(ctx context.Context, id int64, d ContactDraft) *Contact {
	rec := d.record()
	rec["Id"] = id
	return s.svc.Update(ctx, rec)
}

// Delete removes the contact. False covers every failure mode, including
// deleting an id that is already gone.
func (s *ContactService) Delete(ctx context.Context, id int64) bool {
	return s.svc.Delete(ctx, id)
}
