package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hollis/dealflow/internal/functions"
	"github.com/hollis/dealflow/internal/testutil"
)

const testEmailFn = "generate-deal-email"

func newDealEnv(t *testing.T) (*testutil.FakeStore, *testutil.FakeInvoker, *DealService) {
	t.Helper()
	store := &testutil.FakeStore{}
	invoker := &testutil.FakeInvoker{}
	svc := NewDealService(store, invoker, testEmailFn, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }
	return store, invoker, svc
}

func seedDeal(store *testutil.FakeStore, status DealStatus) int64 {
	return store.Seed("deal_c", map[string]any{
		"name_c": "Acme Renewal", "contact_id_c": 7, "value_c": 12500.0,
		"status_c": string(status), "notes_c": "",
	})
}

func TestTransitionFiresOnlyOnWonEdge(t *testing.T) {
	statuses := []DealStatus{StatusLead, StatusNegotiation, StatusWon, StatusLost}
	for _, oldStatus := range statuses {
		for _, newStatus := range statuses {
			wantFire := oldStatus != StatusWon && newStatus == StatusWon
			t.Run(string(oldStatus)+"_to_"+string(newStatus), func(t *testing.T) {
				store, invoker, svc := newDealEnv(t)
				id := seedDeal(store, oldStatus)

				updated := svc.Update(context.Background(), id, DealDraft{
					Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: newStatus,
				})
				if updated == nil {
					t.Fatal("update returned nil")
				}
				if fired := invoker.CallCount() > 0; fired != wantFire {
					t.Fatalf("invocation fired = %v, want %v", fired, wantFire)
				}
			})
		}
	}
}

func TestWonTransitionAppendsGeneratedEmail(t *testing.T) {
	store, invoker, svc := newDealEnv(t)
	invoker.Result = &functions.Result{Success: true, Email: "Thanks!"}
	id := seedDeal(store, StatusLead)

	updated := svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: StatusWon, Notes: "hi",
	})
	if updated == nil {
		t.Fatal("update returned nil")
	}

	notes, _ := store.Record("deal_c", id)["notes_c"].(string)
	if !strings.HasPrefix(notes, "hi") {
		t.Errorf("notes = %q, want caller notes preserved ahead of the block", notes)
	}
	if !strings.Contains(notes, "Thanks!") {
		t.Errorf("notes = %q, want generated text", notes)
	}
	if !strings.Contains(notes, "--- AI Generated Email (2024-03-15 10:30:00) ---") {
		t.Errorf("notes = %q, want timestamped delimiter", notes)
	}
	if !strings.Contains(notes, "--- End of Generated Email ---") {
		t.Errorf("notes = %q, want closing delimiter", notes)
	}
}

func TestWonTransitionSendsContactNamePlaceholder(t *testing.T) {
	store, invoker, svc := newDealEnv(t)
	id := seedDeal(store, StatusNegotiation)

	svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: StatusWon,
	})
	if invoker.CallCount() != 1 {
		t.Fatalf("invocations = %d, want 1", invoker.CallCount())
	}
	req, ok := invoker.Calls[0].Body.(functions.EmailRequest)
	if !ok {
		t.Fatalf("body type = %T", invoker.Calls[0].Body)
	}
	if req.ContactName != "Valued Customer" {
		t.Errorf("contactName = %q, want placeholder", req.ContactName)
	}
	if req.DealName != "Acme Renewal" || req.DealValue != 12500 {
		t.Errorf("request = %+v", req)
	}
}

func TestSideEffectErrorDoesNotBlockUpdate(t *testing.T) {
	store, invoker, svc := newDealEnv(t)
	invoker.Err = errors.New("function runtime unavailable")
	id := seedDeal(store, StatusLead)

	updated := svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: StatusWon, Notes: "keep me",
	})
	if updated == nil {
		t.Fatal("update returned nil, want side-effect failure to be non-fatal")
	}
	if notes := store.Record("deal_c", id)["notes_c"]; notes != "keep me" {
		t.Errorf("notes = %v, want caller value untouched", notes)
	}
}

func TestSideEffectFailureResponseLeavesNotesUntouched(t *testing.T) {
	store, invoker, svc := newDealEnv(t)
	invoker.Result = &functions.Result{Success: false, Raw: json.RawMessage(`{"success":false}`)}
	id := seedDeal(store, StatusLead)

	updated := svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: StatusWon, Notes: "hi",
	})
	if updated == nil {
		t.Fatal("update returned nil")
	}
	if notes := store.Record("deal_c", id)["notes_c"]; notes != "hi" {
		t.Errorf("notes = %v, want unchanged", notes)
	}
}

func TestSideEffectSuccessWithoutEmailLeavesNotesUntouched(t *testing.T) {
	store, invoker, svc := newDealEnv(t)
	invoker.Result = &functions.Result{Success: true, Email: "", Raw: json.RawMessage(`{"success":true}`)}
	id := seedDeal(store, StatusLead)

	updated := svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: StatusWon, Notes: "hi",
	})
	if updated == nil {
		t.Fatal("update returned nil")
	}
	if notes := store.Record("deal_c", id)["notes_c"]; notes != "hi" {
		t.Errorf("notes = %v, want no empty block appended", notes)
	}
}

func TestUpdateWithEmptyStatusDoesNotDefaultToLead(t *testing.T) {
	store, invoker, svc := newDealEnv(t)
	id := seedDeal(store, StatusWon)

	updated := svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500,
	})
	if updated == nil {
		t.Fatal("update returned nil")
	}
	if status := fmt.Sprintf("%v", store.Record("deal_c", id)["status_c"]); status != "" {
		t.Errorf("status = %q, want omitted status written through as empty", status)
	}
	if invoker.CallCount() != 0 {
		t.Errorf("invocations = %d, want none for an empty target status", invoker.CallCount())
	}
}

func TestUpdateWithoutInvokerStillWrites(t *testing.T) {
	store := &testutil.FakeStore{}
	svc := NewDealService(store, nil, "", nil, nil)
	id := seedDeal(store, StatusLead)

	updated := svc.Update(context.Background(), id, DealDraft{
		Name: "Acme Renewal", ContactID: 7, Value: 12500, Status: StatusWon,
	})
	if updated == nil {
		t.Fatal("update returned nil with unconfigured pipeline")
	}
}

func TestUpdateMissingCurrentStillFiresOnWon(t *testing.T) {
	// When the pre-write read fails, the old status is unknown and treated
	// as not-won, so a draft landing on won still triggers the pipeline.
	_, invoker, svc := newDealEnv(t)

	svc.Update(context.Background(), 404, DealDraft{
		Name: "Ghost", ContactID: 1, Value: 1, Status: StatusWon,
	})
	if invoker.CallCount() != 1 {
		t.Fatalf("invocations = %d, want 1", invoker.CallCount())
	}
}

func TestDealCreateRefetchesByNewID(t *testing.T) {
	store, _, svc := newDealEnv(t)

	created := svc.Create(context.Background(), DealDraft{Name: "New Deal", ContactID: 3, Value: 900})
	if created == nil {
		t.Fatal("create returned nil")
	}
	if created.Status != StatusLead {
		t.Errorf("status = %q, want declared default lead", created.Status)
	}

	var sawGet bool
	for _, c := range store.Calls {
		if c.Op == "get" && c.Collection == "deal_c" && c.ID == created.ID {
			sawGet = true
		}
	}
	if !sawGet {
		t.Error("create did not re-fetch the new record by id")
	}
}

func TestContactRefDecodesBothShapes(t *testing.T) {
	var expanded Deal
	if err := json.Unmarshal([]byte(`{"Id":1,"contact_id_c":{"Id":7,"Name":"Ada"}}`), &expanded); err != nil {
		t.Fatal(err)
	}
	if !expanded.Contact.Expanded || expanded.Contact.ID != 7 || expanded.Contact.Name != "Ada" {
		t.Errorf("expanded ref = %+v", expanded.Contact)
	}

	var bare Deal
	if err := json.Unmarshal([]byte(`{"Id":2,"contact_id_c":7}`), &bare); err != nil {
		t.Fatal(err)
	}
	if bare.Contact.Expanded || bare.Contact.ID != 7 {
		t.Errorf("bare ref = %+v", bare.Contact)
	}

	var absent Deal
	if err := json.Unmarshal([]byte(`{"Id":3,"contact_id_c":null}`), &absent); err != nil {
		t.Fatal(err)
	}
	if absent.Contact != (ContactRef{}) {
		t.Errorf("null ref = %+v", absent.Contact)
	}
}

func TestDealStatusValid(t *testing.T) {
	for _, s := range []DealStatus{StatusLead, StatusNegotiation, StatusWon, StatusLost} {
		if !s.Valid() {
			t.Errorf("%q not valid", s)
		}
	}
	if DealStatus("pending").Valid() {
		t.Error("pending accepted")
	}
}
