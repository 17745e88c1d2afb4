// Package export writes the inventory to XLSX workbooks.
package export

import (
	"io"
	"strconv"

	"github.com/jrsteele09/go-moto-client/motorcycles"
	"github.com/jrsteele09/go-moto-client/parts"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	MotorcyclesSheet = "Motorcycles"
	PartsSheet       = "Parts"

	dateLayout = "2006-01-02"
)

type sheet struct {
	name   string
	header []string
	widths []float64
	rows   [][]any
}

func motorcycleSheet(bikes []motorcycles.Motorcycle) sheet {
	s := sheet{
		name:   MotorcyclesSheet,
		header: []string{"ID", "Brand", "Model", "Year", "Price", "Mileage", "Engine", "Color", "New", "Sold", "Featured", "Added"},
		widths: []float64{6, 15, 20, 8, 12, 10, 15, 12, 6, 6, 9, 12},
	}
	for _, m := range bikes {
		s.rows = append(s.rows, []any{
			m.ID, m.Brand, m.Model, m.Year, price(m.Price), m.Mileage, m.Engine, m.Color,
			yesNo(m.IsNew), yesNo(m.IsSold), yesNo(m.IsFeatured), m.CreatedAt.Format(dateLayout),
		})
	}
	return s
}

func partSheet(items []parts.Part) sheet {
	s := sheet{
		name:   PartsSheet,
		header: []string{"ID", "Name", "Category", "Brand", "Price", "Stock", "Condition", "Available", "Compatible models"},
		widths: []float64{6, 25, 15, 15, 12, 8, 12, 10, 30},
	}
	for _, p := range items {
		category := ""
		if p.Category != nil {
			category = p.Category.Name
		}
		s.rows = append(s.rows, []any{
			p.ID, p.Name, category, p.Brand, price(p.Price), p.Stock, p.Condition, yesNo(p.InStock()), p.CompatibleModels,
		})
	}
	return s
}

// WriteMotorcycles writes a workbook with one sheet listing bikes.
func WriteMotorcycles(w io.Writer, bikes []motorcycles.Motorcycle) error {
	return write(w, motorcycleSheet(bikes))
}

// WriteParts writes a workbook with one sheet listing parts.
func WriteParts(w io.Writer, items []parts.Part) error {
	return write(w, partSheet(items))
}

// WriteInventory writes both sheets into one workbook.
func WriteInventory(w io.Writer, bikes []motorcycles.Motorcycle, items []parts.Part) error {
	return write(w, motorcycleSheet(bikes), partSheet(items))
}

func write(w io.Writer, sheets ...sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			// A new workbook starts with one default sheet.
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return errors.Wrapf(err, "[export.write] rename sheet %s", s.name)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return errors.Wrapf(err, "[export.write] create sheet %s", s.name)
		}
		if err := fill(f, s); err != nil {
			return err
		}
	}
	return errors.Wrap(f.Write(w), "[export.write]")
}

func fill(f *excelize.File, s sheet) error {
	header := make([]any, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
		return errors.Wrapf(err, "[export.fill] %s header", s.name)
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "[export.fill]")
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return errors.Wrapf(err, "[export.fill] %s row %d", s.name, i+2)
		}
	}
	for i, width := range s.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return errors.Wrap(err, "[export.fill]")
		}
		if err := f.SetColWidth(s.name, col, col, width); err != nil {
			return errors.Wrapf(err, "[export.fill] %s width", s.name)
		}
	}
	return nil
}

// price keeps the API's decimal string but stores it as a number when it parses.
func price(s string) any {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
