// Package export writes batch extraction results to spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/invoice"
)

// SheetName is the worksheet holding one row per document.
const SheetName = "Invoices"

// Row is the outcome for one document. Err is set when extraction failed.
type Row struct {
	File     string
	Strategy extraction.Strategy
	Result   invoice.Result
	Err      error
}

var headers = []string{
	"File",
	"Extraction Path",
	"Invoice Date",
	"Invoice Reference",
	"Net Amount",
	"Net Currency",
	"VAT Amount",
	"VAT Currency",
	"Total Amount",
	"Total Currency",
	"Error",
}

// WriteXLSX writes rows as a workbook to w. Missing values are empty cells.
func WriteXLSX(w io.Writer, rows []Row) error {
	f, err := build(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// SaveXLSX writes rows to a workbook file at path.
func SaveXLSX(path string, rows []Row) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteXLSX(out, rows); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func build(rows []Row) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}
		writeAmount := func(col int, m *invoice.MonetaryAmount) {
			if m == nil {
				return
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellFloat(SheetName, cell, m.Amount.InexactFloat64(), -1, 64)
			_ = f.SetCellStyle(SheetName, cell, cell, amountStyle)
			if m.Currency != nil {
				write(col+1, *m.Currency)
			}
		}

		write(1, r.File)
		if r.Err != nil {
			write(11, r.Err.Error())
			continue
		}
		write(2, string(r.Strategy))
		if r.Result.InvoiceDate != nil {
			write(3, r.Result.InvoiceDate.String())
		}
		if r.Result.InvoiceReference != nil {
			write(4, *r.Result.InvoiceReference)
		}
		writeAmount(5, r.Result.NetAmount)
		writeAmount(7, r.Result.VATAmount)
		writeAmount(9, r.Result.TotalAmount)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 36) // file
	_ = f.SetColWidth(SheetName, "B", "C", 14)
	_ = f.SetColWidth(SheetName, "D", "D", 22)
	_ = f.SetColWidth(SheetName, "E", "J", 14) // amounts
	_ = f.SetColWidth(SheetName, "K", "K", 48) // error
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	return f, nil
}
