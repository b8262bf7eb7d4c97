package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hollis/dealflow/internal/crm"
)

// ContactRequest is the request body for creating or updating a contact.
type ContactRequest struct {
	Name            string `json:"name"`
	Company         string `json:"company"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	LastContactDate string `json:"last_contact_date"`
}

// Validate validates the contact request.
func (r ContactRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

func (r ContactRequest) draft() crm.ContactDraft {
	return crm.ContactDraft{
		Name:            r.Name,
		Company:         r.Company,
		Email:           r.Email,
		Phone:           r.Phone,
		LastContactDate: r.LastContactDate,
	}
}

// DealRequest is the request body for creating or updating a deal.
// ContactName is optional context for the generated-email pipeline.
type DealRequest struct {
	Name        string  `json:"name"`
	ContactID   int64   `json:"contact_id"`
	Value       float64 `json:"value"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes"`
	ContactName string  `json:"contact_name,omitempty"`
}

// Validate validates the deal request. Value must be a non-negative amount
// and status, when present, one of the four pipeline stages.
func (r DealRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Value, validation.Min(0.0)),
		validation.Field(&r.Status, validation.In(
			string(crm.StatusLead), string(crm.StatusNegotiation),
			string(crm.StatusWon), string(crm.StatusLost))),
	)
}

func (r DealRequest) draft() crm.DealDraft {
	return crm.DealDraft{
		Name:        r.Name,
		ContactID:   r.ContactID,
		Value:       r.Value,
		Status:      crm.DealStatus(r.Status),
		Notes:       r.Notes,
		ContactName: r.ContactName,
	}
}

// TaskRequest is the request body for creating or updating a task.
type TaskRequest struct {
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Completed   bool   `json:"completed"`
	RelatedType string `json:"related_type"`
	RelatedID   int64  `json:"related_id"`
}

// Validate validates the task request.
func (r TaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.RelatedType, validation.In("contact", "deal")),
	)
}

func (r TaskRequest) draft() crm.TaskDraft {
	related := crm.EntityRef{}
	switch r.RelatedType {
	case "contact":
		related = crm.EntityRef{Kind: crm.RefContact, ID: r.RelatedID}
	case "deal":
		related = crm.EntityRef{Kind: crm.RefDeal, ID: r.RelatedID}
	}
	return crm.TaskDraft{
		Description: r.Description,
		DueDate:     r.DueDate,
		Completed:   r.Completed,
		Related:     related,
	}
}

// DealResponse augments a deal with its resolved contact name.
type DealResponse struct {
	crm.Deal
	ContactName string `json:"contact_name"`
}

// TaskResponse is a task enriched with its resolved related-entity name and
// priority bucket for display.
type TaskResponse struct {
	ID          int64  `json:"Id"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Completed   bool   `json:"completed"`
	RelatedType string `json:"related_type"`
	RelatedID   int64  `json:"related_id,omitempty"`
	RelatedName string `json:"related_name,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// ContactListResponse wraps a contact listing.
type ContactListResponse struct {
	Contacts []crm.Contact `json:"contacts"`
	Total    int           `json:"total"`
}

// DealListResponse wraps a deal listing.
type DealListResponse struct {
	Deals []DealResponse `json:"deals"`
	Total int            `json:"total"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// ImportResponse reports the outcome of a contact sheet import.
type ImportResponse struct {
	Parsed  int `json:"parsed"`
	Created int `json:"created"`
}
