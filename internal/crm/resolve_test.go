package crm

import "testing"

var (
	testContacts = []Contact{
		{ID: 1, Name: "Ada Lovelace"},
		{ID: 2, Name: "Grace Hopper"},
	}
	testDeals = []Deal{
		{ID: 10, Name: "Acme Renewal"},
	}
)

func TestContactRefResolve(t *testing.T) {
	tests := []struct {
		name string
		ref  ContactRef
		want string
	}{
		{"expanded wins without lookup", ContactRef{ID: 999, Name: "Embedded Name", Expanded: true}, "Embedded Name"},
		{"bare id looked up", ContactRef{ID: 2}, "Grace Hopper"},
		{"dangling id falls back", ContactRef{ID: 999}, UnknownContact},
		{"expanded without name falls through to lookup", ContactRef{ID: 1, Expanded: true}, "Ada Lovelace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Resolve(testContacts); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntityRefResolve(t *testing.T) {
	tests := []struct {
		name string
		ref  EntityRef
		want string
	}{
		{"contact", EntityRef{Kind: RefContact, ID: 1}, "Ada Lovelace"},
		{"deal", EntityRef{Kind: RefDeal, ID: 10}, "Acme Renewal"},
		{"dangling contact", EntityRef{Kind: RefContact, ID: 999}, UnknownContact},
		{"dangling deal", EntityRef{Kind: RefDeal, ID: 999}, UnknownDeal},
		{"none", EntityRef{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Resolve(testContacts, testDeals); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveWithEmptyCollections(t *testing.T) {
	if got := (ContactRef{ID: 1}).Resolve(nil); got != UnknownContact {
		t.Errorf("got %q", got)
	}
	if got := (EntityRef{Kind: RefDeal, ID: 1}).Resolve(nil, nil); got != UnknownDeal {
		t.Errorf("got %q", got)
	}
}
