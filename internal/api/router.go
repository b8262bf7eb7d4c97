package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Contacts CRUD.
	r.Get("/contacts", h.ListContacts)
	r.Post("/contacts", h.CreateContact)
	r.Get("/contacts/{id}", h.GetContact)
	r.Put("/contacts/{id}", h.UpdateContact)
	r.Delete("/contacts/{id}", h.DeleteContact)

	// Deals CRUD plus export.
	r.Get("/deals", h.ListDeals)
	r.Post("/deals", h.CreateDeal)
	r.Get("/deals/export", h.ExportDeals)
	r.Get("/deals/{id}", h.GetDeal)
	r.Put("/deals/{id}", h.UpdateDeal)
	r.Delete("/deals/{id}", h.DeleteDeal)

	// Tasks CRUD.
	r.Get("/tasks", h.ListTasks)
	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks/{id}", h.GetTask)
	r.Put("/tasks/{id}", h.UpdateTask)
	r.Delete("/tasks/{id}", h.DeleteTask)

	// Contact sheet import.
	r.Post("/imports/contacts", h.ImportContacts)

	// Operation log.
	r.Get("/oplog", h.ListEvents)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
