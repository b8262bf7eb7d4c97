package mcpserver

// RecordFormatContract describes the canonical CRM record shapes that
// LLM consumers should follow when creating or updating records.
const RecordFormatContract = `# Dealflow Record Format Contract

Records created or updated through Dealflow tools MUST follow these rules.

## Contacts

- ` + "`" + `name` + "`" + ` is required. Everything else is optional.
- ` + "`" + `last_contact_date` + "`" + ` is a plain date: ` + "`" + `YYYY-MM-DD` + "`" + `.

## Deals

- ` + "`" + `name` + "`" + ` is required; ` + "`" + `value` + "`" + ` must be >= 0.
- ` + "`" + `status` + "`" + ` is one of: ` + "`" + `lead` + "`" + `, ` + "`" + `negotiation` + "`" + `, ` + "`" + `won` + "`" + `, ` + "`" + `lost` + "`" + `.
  A deal with no status starts as ` + "`" + `lead` + "`" + `.
- Moving a deal onto ` + "`" + `won` + "`" + ` (from any other stage) generates a follow-up
  email and appends it to the deal notes. Re-saving a deal already in
  ` + "`" + `won` + "`" + ` does not generate another email.
- ` + "`" + `contact_id` + "`" + ` references a contact record. Unknown ids display as
  "Unknown Contact" but are not rejected.

## Tasks

- ` + "`" + `description` + "`" + ` is required.
- ` + "`" + `due_date` + "`" + ` is a plain date: ` + "`" + `YYYY-MM-DD` + "`" + `. Priority is computed from it
  by calendar day: past days are ` + "`" + `overdue` + "`" + `, the current day is ` + "`" + `today` + "`" + `,
  future days are ` + "`" + `upcoming` + "`" + `.
- A task may relate to one entity: ` + "`" + `related_type` + "`" + ` is ` + "`" + `contact` + "`" + ` or
  ` + "`" + `deal` + "`" + ` plus a ` + "`" + `related_id` + "`" + `, or both are omitted. A type without an id
  (or an id without a recognized type) means no relation.

## Imports

- ` + "`" + `import_contacts` + "`" + ` accepts CSV or XLSX with a header row. Recognized
  columns: ` + "`" + `name` + "`" + ` (required), ` + "`" + `company` + "`" + `, ` + "`" + `email` + "`" + `, ` + "`" + `phone` + "`" + `,
  ` + "`" + `last_contact_date` + "`" + `. Rows without a name are skipped.
`
