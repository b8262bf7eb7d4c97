// Package ingest imports contact records from CSV and XLSX sheets, either
// uploaded through the API or dropped into a watched inbox directory.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hollis/dealflow/internal/apperr"
	"github.com/hollis/dealflow/internal/crm"
)

// Formats accepted by ParseContacts.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ParseContacts reads a contact sheet into drafts. The first row must be a
// header; recognized columns are name, company, email, phone and
// last_contact_date (spaces and case are ignored). Rows without a name are
// skipped.
func ParseContacts(r io.Reader, format string) ([]crm.ContactDraft, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: read input: %w", err)
	}

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = parseCSV(payload)
	case FormatXLSX:
		rows, err = parseXLSX(payload)
	default:
		return nil, fmt.Errorf("ingest: %q: %w", format, apperr.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.ErrEmptyFile
	}

	cols := columnIndex(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, errors.New("ingest: header row has no name column")
	}

	drafts := []crm.ContactDraft{}
	for _, row := range rows[1:] {
		d := crm.ContactDraft{
			Name:            cell(row, cols, "name"),
			Company:         cell(row, cols, "company"),
			Email:           cell(row, cols, "email"),
			Phone:           cell(row, cols, "phone"),
			LastContactDate: cell(row, cols, "last_contact_date"),
		}
		if d.Name == "" {
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	return rows, nil
}

func parseXLSX(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ingest: open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: read xlsx rows: %w", err)
	}
	return rows, nil
}

// columnIndex maps normalized header names to column positions.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		name = strings.ReplaceAll(name, " ", "_")
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Importer creates contacts from parsed sheets through the contact service.
type Importer struct {
	contacts *crm.ContactService
	log      *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(contacts *crm.ContactService, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{contacts: contacts, log: log}
}

// Import creates each draft and returns how many were persisted. Individual
// failures are already reported by the service; the importer just counts.
func (im *Importer) Import(ctx context.Context, drafts []crm.ContactDraft) int {
	created := 0
	for _, d := range drafts {
		if im.contacts.Create(ctx, d) != nil {
			created++
		}
	}
	return created
}

// ImportFile parses the file at path (format by extension) and imports it.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	format, err := formatForPath(path)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	drafts, err := ParseContacts(f, format)
	if err != nil {
		return 0, err
	}

	created := im.Import(ctx, drafts)
	im.log.Info("contact import finished",
		slog.String("file", filepath.Base(path)),
		slog.Int("parsed", len(drafts)),
		slog.Int("created", created))
	return created, nil
}

func formatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("ingest: %s: %w", path, apperr.ErrUnsupportedFormat)
}
