package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hollis/dealflow/internal/crm"
	"github.com/hollis/dealflow/internal/functions"
	"github.com/hollis/dealflow/internal/ingest"
	"github.com/hollis/dealflow/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.FakeStore, *testutil.FakeInvoker) {
	t.Helper()

	store := &testutil.FakeStore{}
	invoker := &testutil.FakeInvoker{
		Result: &functions.Result{Success: true, Email: "Thanks for your business!"},
	}

	contacts := crm.NewContactService(store, nil, nil)
	deals := crm.NewDealService(store, invoker, "generate-deal-email", nil, nil)
	tasks := crm.NewTaskService(store, nil, nil)
	importer := ingest.NewImporter(contacts, nil)

	srv := New(contacts, deals, tasks, importer)
	return srv, store, invoker
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_contacts":
		result, err = srv.listContacts(ctx, req)
	case "list_deals":
		result, err = srv.listDeals(ctx, req)
	case "list_tasks":
		result, err = srv.listTasks(ctx, req)
	case "create_task":
		result, err = srv.createTask(ctx, req)
	case "set_deal_status":
		result, err = srv.setDealStatus(ctx, req)
	case "import_contacts":
		result, err = srv.importContacts(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListDealsResolvesContactNames(t *testing.T) {
	srv, store, _ := testServer(t)
	store.Seed("contact_c", map[string]any{"name_c": "Ada Lovelace"})
	store.Seed("deal_c", map[string]any{
		"name_c": "Acme Renewal", "contact_id_c": 1, "value_c": 5000.0,
		"status_c": "negotiation", "notes_c": "",
	})

	r := callTool(t, srv, "list_deals", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "Acme Renewal") || !strings.Contains(text, "Ada Lovelace") {
		t.Errorf("list_deals = %s", text)
	}
}

func TestSetDealStatusWonAppendsEmail(t *testing.T) {
	srv, store, invoker := testServer(t)
	store.Seed("contact_c", map[string]any{"name_c": "Ada Lovelace"})
	id := store.Seed("deal_c", map[string]any{
		"name_c": "Acme Renewal", "contact_id_c": 1, "value_c": 5000.0,
		"status_c": "lead", "notes_c": "first call done",
	})

	r := callTool(t, srv, "set_deal_status", map[string]interface{}{
		"id": float64(id), "status": "won",
	})
	if r.IsError {
		t.Fatalf("set_deal_status error: %s", resultText(r))
	}

	notes, _ := store.Record("deal_c", id)["notes_c"].(string)
	if !strings.HasPrefix(notes, "first call done") || !strings.Contains(notes, "Thanks for your business!") {
		t.Errorf("notes = %q", notes)
	}
	if invoker.CallCount() != 1 {
		t.Errorf("invocations = %d, want 1", invoker.CallCount())
	}
	if len(invoker.Calls) == 1 {
		body, ok := invoker.Calls[0].Body.(functions.EmailRequest)
		if !ok || body.ContactName != "Ada Lovelace" {
			t.Errorf("request body = %+v", invoker.Calls[0].Body)
		}
	}
}

func TestSetDealStatusRejectsUnknownStage(t *testing.T) {
	srv, store, _ := testServer(t)
	store.Seed("deal_c", map[string]any{
		"name_c": "Acme Renewal", "contact_id_c": 1, "value_c": 5000.0,
		"status_c": "lead", "notes_c": "",
	})

	r := callTool(t, srv, "set_deal_status", map[string]interface{}{
		"id": float64(1), "status": "pending",
	})
	if !r.IsError {
		t.Error("expected error for unknown stage")
	}
}

func TestCreateTaskWithRelation(t *testing.T) {
	srv, store, _ := testServer(t)
	store.Seed("contact_c", map[string]any{"name_c": "Ada Lovelace"})

	r := callTool(t, srv, "create_task", map[string]interface{}{
		"description":  "Call Ada",
		"due_date":     "2024-03-20",
		"related_type": "contact",
		"related_id":   float64(1),
	})
	if r.IsError {
		t.Fatalf("create_task error: %s", resultText(r))
	}

	rec := store.Record("task_c", 1)
	if rec == nil {
		t.Fatal("task not stored")
	}
	if rec["related_entity_type_c"] != "contact" {
		t.Errorf("related type = %v", rec["related_entity_type_c"])
	}
}

func TestCreateTaskRejectsUnknownRelatedType(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "create_task", map[string]interface{}{
		"description":  "File invoice",
		"related_type": "invoice",
		"related_id":   float64(3),
	})
	if !r.IsError {
		t.Error("expected error for unknown related type")
	}
}

func TestListTasksComputesPriority(t *testing.T) {
	oldNow := timeNow
	timeNow = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	defer func() { timeNow = oldNow }()

	srv, store, _ := testServer(t)
	store.Seed("task_c", map[string]any{
		"description_c": "Overdue call", "due_date_c": "2024-03-10", "completed_c": false,
		"related_entity_type_c": "", "related_entity_id_c": nil,
	})

	r := callTool(t, srv, "list_tasks", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, `"priority": "overdue"`) {
		t.Errorf("list_tasks = %s", text)
	}
}

func TestImportContactsInlineCSV(t *testing.T) {
	srv, store, _ := testServer(t)

	r := callTool(t, srv, "import_contacts", map[string]interface{}{
		"content": "name,email\nAda Lovelace,ada@example.com\nGrace Hopper,grace@example.com\n",
	})
	if r.IsError {
		t.Fatalf("import_contacts error: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, `"created":2`) {
		t.Errorf("import result = %s", text)
	}
	if store.Record("contact_c", 2) == nil {
		t.Error("second contact not stored")
	}
}

func TestImportContactsRequiresInput(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "import_contacts", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when neither content nor url given")
	}
}
