package crm

// Sentinel labels for references that point at records missing from the
// provided collections. Dangling references resolve to these, never to an
// error: the store enforces no integrity on lookups.
const (
	UnknownContact = "Unknown Contact"
	UnknownDeal    = "Unknown Deal"
)

// Resolve returns the contact's display name. An expanded reference answers
// directly; a bare id is looked up in contacts. Inputs are never mutated.
func (r ContactRef) Resolve(contacts []Contact) string {
	if r.Expanded && r.Name != "" {
		return r.Name
	}
	for _, c := range contacts {
		if c.ID == r.ID {
			return c.Name
		}
	}
	return UnknownContact
}

// Resolve returns the display name of the referenced entity, the unknown
// sentinel for a dangling reference, or "" when the task references nothing.
func (r EntityRef) Resolve(contacts []Contact, deals []Deal) string {
	switch r.Kind {
	case RefContact:
		for _, c := range contacts {
			if c.ID == r.ID {
				return c.Name
			}
		}
		return UnknownContact
	case RefDeal:
		for _, d := range deals {
			if d.ID == r.ID {
				return d.Name
			}
		}
		return UnknownDeal
	}
	return ""
}
