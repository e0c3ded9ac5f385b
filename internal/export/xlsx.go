package export

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/odyssey-erp/stockcount/internal/counting"
)

// SheetName is the single worksheet of the XLSX export.
const SheetName = "Sheet1"

var columns = []string{"A", "B", "C", "D", "E", "F", "G"}

// WriteXLSX renders the ledger as a workbook with the CSV header on row 1.
func WriteXLSX(w io.Writer, counts []counting.ProductCount) error {
	if len(counts) == 0 {
		return ErrEmptyExport
	}
	f := excelize.NewFile()
	for i, name := range Header {
		f.SetCellValue(SheetName, cell(i, 1), name)
	}
	for r, row := range Rows(counts) {
		line := r + 2
		values := []interface{}{
			row.Barcode,
			row.ProductCode,
			row.Description,
			row.StockBalance,
			row.StoreQuantity,
			row.WarehouseQuantity,
			row.Total,
		}
		for i, v := range values {
			f.SetCellValue(SheetName, cell(i, line), v)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write xlsx: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	return fmt.Sprintf("%s%d", columns[col], row)
}
