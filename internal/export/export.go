// Package export renders CRM collections as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hollis/dealflow/internal/crm"
)

const dealSheet = "Deals"

// WriteDeals writes an XLSX workbook with one row per deal. Contact
// references are resolved against contacts so the sheet carries readable
// names instead of ids.
func WriteDeals(w io.Writer, deals []crm.Deal, contacts []crm.Contact) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(dealSheet)
	if err != nil {
		return fmt.Errorf("export: new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: drop default sheet: %w", err)
	}

	header := []any{"Id", "Deal", "Contact", "Value", "Status", "Notes"}
	if err := f.SetSheetRow(dealSheet, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i, d := range deals {
		row := []any{
			d.ID,
			d.Name,
			d.Contact.Resolve(contacts),
			d.Value,
			string(d.Status),
			d.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		if err := f.SetSheetRow(dealSheet, cell, &row); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
