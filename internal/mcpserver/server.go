// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dealflow CRM tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hollis/dealflow/internal/crm"
	"github.com/hollis/dealflow/internal/ingest"
)

// timeNow is swapped out in tests that assert on computed priorities.
var timeNow = time.Now

// Server wraps the MCP server with Dealflow tools.
type Server struct {
	mcp      *server.MCPServer
	contacts *crm.ContactService
	deals    *crm.DealService
	tasks    *crm.TaskService
	importer *ingest.Importer
}

// New creates a new MCP server with all Dealflow tools registered.
func New(contacts *crm.ContactService, deals *crm.DealService, tasks *crm.TaskService, importer *ingest.Importer) *Server {
	s := &Server{contacts: contacts, deals: deals, tasks: tasks, importer: importer}

	s.mcp = server.NewMCPServer(
		"Dealflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_contacts",
		mcp.WithDescription("List all CRM contacts with their company, email and phone."),
	), s.listContacts)

	s.mcp.AddTool(mcp.NewTool("list_deals",
		mcp.WithDescription("List all deals in the pipeline with resolved contact names, "+
			"value, stage and notes."),
	), s.listDeals)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks with computed priority (overdue, today, upcoming) "+
			"and the name of the related contact or deal."),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a follow-up task, optionally linked to a contact or deal. "+
			"Read the record contract first via the get_record_contract tool or the "+
			"dealflow://record-format resource."),
		mcp.WithString("description", mcp.Required(), mcp.Description("What needs to be done")),
		mcp.WithString("due_date", mcp.Description("Due date as YYYY-MM-DD (empty for none)")),
		mcp.WithString("related_type", mcp.Description("Related entity type: contact or deal (empty for none)")),
		mcp.WithNumber("related_id", mcp.Description("Id of the related contact or deal")),
	), s.createTask)

	s.mcp.AddTool(mcp.NewTool("set_deal_status",
		mcp.WithDescription("Move a deal to a new pipeline stage (lead, negotiation, won, lost). "+
			"Moving a deal onto won triggers follow-up email generation; the generated "+
			"email is appended to the deal notes."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Deal id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target stage: lead, negotiation, won or lost")),
	), s.setDealStatus)

	s.registerImportTool()

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical Dealflow record contract. "+
			"Call this before creating records to ensure correct field values."),
	), s.getRecordContract)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource("dealflow://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical CRM record fields and value constraints."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contacts := s.contacts.GetAll(ctx)
	out, _ := json.MarshalIndent(contacts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

type dealRow struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ContactName string  `json:"contact_name"`
	Value       float64 `json:"value"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes,omitempty"`
}

func (s *Server) listDeals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deals := s.deals.GetAll(ctx)
	contacts := s.contacts.GetAll(ctx)

	rows := make([]dealRow, 0, len(deals))
	for _, d := range deals {
		rows = append(rows, dealRow{
			ID:          d.ID,
			Name:        d.Name,
			ContactName: d.Contact.Resolve(contacts),
			Value:       d.Value,
			Status:      string(d.Status),
			Notes:       d.Notes,
		})
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

type taskRow struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority,omitempty"`
	RelatedName string `json:"related_name,omitempty"`
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.tasks.GetAll(ctx)
	contacts := s.contacts.GetAll(ctx)
	deals := s.deals.GetAll(ctx)

	rows := make([]taskRow, 0, len(tasks))
	for _, t := range tasks {
		row := taskRow{
			ID:          t.ID,
			Description: t.Description,
			DueDate:     t.DueDate,
			Completed:   t.Completed,
			RelatedName: t.Related.Resolve(contacts, deals),
		}
		if p, ok := t.Priority(timeNow()); ok {
			row.Priority = string(p)
		}
		rows = append(rows, row)
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	draft := crm.TaskDraft{Description: description}
	if due, dErr := req.RequireString("due_date"); dErr == nil {
		draft.DueDate = due
	}

	relatedType := ""
	if v, tErr := req.RequireString("related_type"); tErr == nil {
		relatedType = strings.ToLower(strings.TrimSpace(v))
	}
	switch relatedType {
	case "":
	case "contact", "deal":
		id, iErr := req.RequireFloat("related_id")
		if iErr != nil {
			return mcp.NewToolResultError("related_id is required when related_type is set"), nil
		}
		kind := crm.RefContact
		if relatedType == "deal" {
			kind = crm.RefDeal
		}
		draft.Related = crm.EntityRef{Kind: kind, ID: int64(id)}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported related_type: %s (allowed: contact, deal)", relatedType)), nil
	}

	created := s.tasks.Create(ctx, draft)
	if created == nil {
		return mcp.NewToolResultError("record store rejected the task"), nil
	}
	out, _ := json.MarshalIndent(created, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setDealStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireFloat("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := crm.DealStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported status: %s (allowed: lead, negotiation, won, lost)", raw)), nil
	}

	dealID := int64(id)
	current := s.deals.GetByID(ctx, dealID)
	if current == nil {
		return mcp.NewToolResultError(fmt.Sprintf("deal not found: %d", dealID)), nil
	}

	contacts := s.contacts.GetAll(ctx)
	updated := s.deals.Update(ctx, dealID, crm.DealDraft{
		Name:        current.Name,
		ContactID:   current.Contact.ID,
		Value:       current.Value,
		Status:      status,
		Notes:       current.Notes,
		ContactName: current.Contact.Resolve(contacts),
	})
	if updated == nil {
		return mcp.NewToolResultError("record store rejected the update"), nil
	}
	out, _ := json.MarshalIndent(updated, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dealflow://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
