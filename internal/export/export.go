// Package export projects the count ledger into downloadable files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/stockcount/internal/counting"
)

// Format selects the file type produced by Build.
type Format string

const (
	// FormatCSV is the semicolon separated, fully quoted text export.
	FormatCSV Format = "csv"
	// FormatXLSX is a single-sheet workbook with the same columns.
	FormatXLSX Format = "xlsx"
)

var (
	// ErrEmptyExport is returned when there is nothing to export.
	ErrEmptyExport = errors.New("export: nenhum item para exportar")
	// ErrUnknownFormat is returned for formats other than csv and xlsx.
	ErrUnknownFormat = errors.New("export: unknown format")
)

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv;charset=utf-8"
}

// Row is the flat projection of one ProductCount, in export column order.
type Row struct {
	Barcode           string `csv:"codigo_de_barras"`
	ProductCode       string `csv:"codigo_produto"`
	Description       string `csv:"descricao"`
	StockBalance      int    `csv:"saldo_estoque"`
	StoreQuantity     int    `csv:"quant_loja"`
	WarehouseQuantity int    `csv:"quant_estoque"`
	Total             int    `csv:"total"`
}

// Header lists the export columns in order.
var Header = []string{
	"codigo_de_barras",
	"codigo_produto",
	"descricao",
	"saldo_estoque",
	"quant_loja",
	"quant_estoque",
	"total",
}

// Rows projects every record, skipping none.
func Rows(counts []counting.ProductCount) []Row {
	rows := make([]Row, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, Row{
			Barcode:           c.Barcode,
			ProductCode:       c.ProductCode,
			Description:       c.Description,
			StockBalance:      c.StockBalance,
			StoreQuantity:     c.StoreQuantity,
			WarehouseQuantity: c.WarehouseQuantity,
			Total:             c.Total,
		})
	}
	return rows
}

// FileName returns contagem_<location>_<YYYY-MM-DD>.<ext>. The date is the
// UTC calendar day.
func FileName(location counting.Location, format Format, now time.Time) string {
	return fmt.Sprintf("contagem_%s_%s.%s", location, now.UTC().Format("2006-01-02"), format)
}

// File is a rendered export ready for download.
type File struct {
	Name        string
	ContentType string
	Body        []byte
	Rows        int
}

// Build renders the ledger in the requested format.
func Build(counts []counting.ProductCount, location counting.Location, format Format, now time.Time) (File, error) {
	if len(counts) == 0 {
		return File{}, ErrEmptyExport
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(&buf, counts)
	case FormatXLSX:
		err = WriteXLSX(&buf, counts)
	default:
		return File{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return File{}, err
	}
	return File{
		Name:        FileName(location, format, now),
		ContentType: format.ContentType(),
		Body:        buf.Bytes(),
		Rows:        len(counts),
	}, nil
}
