package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hollis/dealflow/internal/crm"
	"github.com/hollis/dealflow/internal/export"
	"github.com/hollis/dealflow/internal/ingest"
	"github.com/hollis/dealflow/internal/oplog"
	"github.com/hollis/dealflow/internal/sse"
)

// Handler holds API route handlers over the entity services.
type Handler struct {
	contacts *crm.ContactService
	deals    *crm.DealService
	tasks    *crm.TaskService
	importer *ingest.Importer
	events   *oplog.Log
	broker   *sse.Broker
	now      func() time.Time
}

// NewHandler creates a Handler. events and broker may be nil.
func NewHandler(contacts *crm.ContactService, deals *crm.DealService, tasks *crm.TaskService, importer *ingest.Importer, events *oplog.Log, broker *sse.Broker) *Handler {
	return &Handler{
		contacts: contacts,
		deals:    deals,
		tasks:    tasks,
		importer: importer,
		events:   events,
		broker:   broker,
		now:      time.Now,
	}
}

// recordID parses the id path parameter. Non-numeric input yields 0, which
// the remote store rejects as an unknown record; ids are not pre-validated
// here.
func recordID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func (h *Handler) notify(kind, collection string, id int64) {
	if h.broker != nil {
		h.broker.PublishRecordEvent(kind, collection, id)
	}
}

func decodeBody[T interface{ Validate() error }](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return req, false
	}
	return req, true
}

// --- Contacts ---

// ListContacts handles GET /api/contacts.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts := h.contacts.GetAll(r.Context())
	writeJSON(w, http.StatusOK, ContactListResponse{Contacts: contacts, Total: len(contacts)})
}

// GetContact handles GET /api/contacts/{id}.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	contact := h.contacts.GetByID(r.Context(), recordID(r))
	if contact == nil {
		writeJSON(w, http.StatusNotFound, errorBody("contact not found"))
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// CreateContact handles POST /api/contacts.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[ContactRequest](w, r)
	if !ok {
		return
	}
	contact := h.contacts.Create(r.Context(), req.draft())
	if contact == nil {
		writeJSON(w, http.StatusBadGateway, errorBody("contact was not created"))
		return
	}
	h.notify("created", "contact_c", contact.ID)
	writeJSON(w, http.StatusCreated, contact)
}

// UpdateContact handles PUT /api/contacts/{id}.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[ContactRequest](w, r)
	if !ok {
		return
	}
	id := recordID(r)
	contact := h.contacts.Update(r.Context(), id, req.draft())
	if contact == nil {
		writeJSON(w, http.StatusBadGateway, errorBody("contact was not updated"))
		return
	}
	h.notify("updated", "contact_c", id)
	writeJSON(w, http.StatusOK, contact)
}

// DeleteContact handles DELETE /api/contacts/{id}.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := recordID(r)
	if !h.contacts.Delete(r.Context(), id) {
		writeJSON(w, http.StatusBadGateway, errorBody("contact was not deleted"))
		return
	}
	h.notify("deleted", "contact_c", id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Deals ---

func (h *Handler) dealResponses(r *http.Request, deals []crm.Deal) []DealResponse {
	contacts := h.contacts.GetAll(r.Context())
	out := make([]DealResponse, len(deals))
	for i, d := range deals {
		out[i] = DealResponse{Deal: d, ContactName: d.Contact.Resolve(contacts)}
	}
	return out
}

// ListDeals handles GET /api/deals.
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	deals := h.dealResponses(r, h.deals.GetAll(r.Context()))
	writeJSON(w, http.StatusOK, DealListResponse{Deals: deals, Total: len(deals)})
}

// GetDeal handles GET /api/deals/{id}.
func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	deal := h.deals.GetByID(r.Context(), recordID(r))
	if deal == nil {
		writeJSON(w, http.StatusNotFound, errorBody("deal not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.dealResponses(r, []crm.Deal{*deal})[0])
}

// CreateDeal handles POST /api/deals.
func (h *Handler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[DealRequest](w, r)
	if !ok {
		return
	}
	deal := h.deals.Create(r.Context(), req.draft())
	if deal == nil {
		writeJSON(w, http.StatusBadGateway, errorBody("deal was not created"))
		return
	}
	h.notify("created", "deal_c", deal.ID)
	writeJSON(w, http.StatusCreated, h.dealResponses(r, []crm.Deal{*deal})[0])
}

// UpdateDeal handles PUT /api/deals/{id}. A status change landing on won
// triggers the generated-email pipeline inside the deal service.
func (h *Handler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[DealRequest](w, r)
	if !ok {
		return
	}
	id := recordID(r)
	deal := h.deals.Update(r.Context(), id, req.draft())
	if deal == nil {
		writeJSON(w, http.StatusBadGateway, errorBody("deal was not updated"))
		return
	}
	h.notify("updated", "deal_c", id)
	writeJSON(w, http.StatusOK, h.dealResponses(r, []crm.Deal{*deal})[0])
}

// DeleteDeal handles DELETE /api/deals/{id}.
func (h *Handler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	id := recordID(r)
	if !h.deals.Delete(r.Context(), id) {
		writeJSON(w, http.StatusBadGateway, errorBody("deal was not deleted"))
		return
	}
	h.notify("deleted", "deal_c", id)
	w.WriteHeader(http.StatusNoContent)
}

// ExportDeals handles GET /api/deals/export.
func (h *Handler) ExportDeals(w http.ResponseWriter, r *http.Request) {
	deals := h.deals.GetAll(r.Context())
	contacts := h.contacts.GetAll(r.Context())

	// Assemble the full workbook before touching the response so a
	// failed render still yields a clean error status.
	var buf bytes.Buffer
	if err := export.WriteDeals(&buf, deals, contacts); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("export failed"))
		return
	}

	filename := fmt.Sprintf("deals-%s.xlsx", h.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// --- Tasks ---

func (h *Handler) taskResponses(r *http.Request, tasks []crm.Task) []TaskResponse {
	contacts := h.contacts.GetAll(r.Context())
	deals := h.deals.GetAll(r.Context())
	now := h.now()

	out := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		resp := TaskResponse{
			ID:          t.ID,
			Description: t.Description,
			DueDate:     t.DueDate,
			Completed:   t.Completed,
			RelatedName: t.Related.Resolve(contacts, deals),
		}
		switch t.Related.Kind {
		case crm.RefContact:
			resp.RelatedType, resp.RelatedID = "contact", t.Related.ID
		case crm.RefDeal:
			resp.RelatedType, resp.RelatedID = "deal", t.Related.ID
		}
		if p, ok := t.Priority(now); ok {
			resp.Priority = string(p)
		}
		out[i] = resp
	}
	return out
}

// ListTasks handles GET /api/tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.taskResponses(r, h.tasks.GetAll(r.Context()))
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task := h.tasks.GetByID(r.Context(), recordID(r))
	if task == nil {
		writeJSON(w, http.StatusNotFound, errorBody("task not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.taskResponses(r, []crm.Task{*task})[0])
}

// CreateTask handles POST /api/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[TaskRequest](w, r)
	if !ok {
		return
	}
	task := h.tasks.Create(r.Context(), req.draft())
	if task == nil {
		writeJSON(w, http.StatusBadGateway, errorBody("task was not created"))
		return
	}
	h.notify("created", "task_c", task.ID)
	writeJSON(w, http.StatusCreated, h.taskResponses(r, []crm.Task{*task})[0])
}

// UpdateTask handles PUT /api/tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[TaskRequest](w, r)
	if !ok {
		return
	}
	id := recordID(r)
	task := h.tasks.Update(r.Context(), id, req.draft())
	if task == nil {
		writeJSON(w, http.StatusBadGateway, errorBody("task was not updated"))
		return
	}
	h.notify("updated", "task_c", id)
	writeJSON(w, http.StatusOK, h.taskResponses(r, []crm.Task{*task})[0])
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := recordID(r)
	if !h.tasks.Delete(r.Context(), id) {
		writeJSON(w, http.StatusBadGateway, errorBody("task was not deleted"))
		return
	}
	h.notify("deleted", "task_c", id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Imports ---

// ImportContacts handles POST /api/imports/contacts. The body is a
// multipart form with a "file" part holding a CSV or XLSX sheet.
func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 20<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file part is required"))
		return
	}
	defer file.Close()

	format := ingest.FormatCSV
	if ext := header.Filename; len(ext) > 5 && ext[len(ext)-5:] == ".xlsx" {
		format = ingest.FormatXLSX
	}

	drafts, err := ingest.ParseContacts(file, format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	created := h.importer.Import(r.Context(), drafts)
	if created > 0 {
		h.notify("created", "contact_c", 0)
	}
	writeJSON(w, http.StatusOK, ImportResponse{Parsed: len(drafts), Created: created})
}

// --- Operation log ---

// ListEvents handles GET /api/oplog.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []oplog.Event{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.events.Recent(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
