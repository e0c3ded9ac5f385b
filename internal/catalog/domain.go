package catalog

import (
	"errors"
	"fmt"
)

// Column names of the catalog import file.
const (
	ColumnBarcode      = "codigo_de_barras"
	ColumnProductCode  = "codigo_produto"
	ColumnDescription  = "descricao"
	ColumnStockBalance = "saldo_estoque"
)

// TempCodePrefix prefixes product codes assigned to inline registered products.
const TempCodePrefix = "TEMP-"

// Product is a catalog entry. It is never mutated after creation.
type Product struct {
	ID           int64  `json:"id"`
	Code         string `json:"codigo_produto"`
	Description  string `json:"descricao"`
	StockBalance int    `json:"saldo_estoque"`
}

// BarCode binds a scanned code to exactly one product.
type BarCode struct {
	Barcode   string `json:"codigo_de_barras"`
	ProductID int64  `json:"produto_id"`
}

// Row is one raw input row keyed by column name. A missing key means the
// field was not present in the source at all.
type Row map[string]string

// ErrorKind classifies an import diagnostic.
type ErrorKind string

const (
	// KindIncompleteRow marks a row with missing required fields.
	KindIncompleteRow ErrorKind = "incomplete_row"
	// KindDuplicateBarcode marks a barcode already in the catalog or batch.
	KindDuplicateBarcode ErrorKind = "duplicate_barcode"
	// KindInvalidQuantity marks a stock balance that is not an integer.
	KindInvalidQuantity ErrorKind = "invalid_quantity"
)

var (
	// ErrIncompleteRow indicates a row missing one of the four fields.
	ErrIncompleteRow = errors.New("catalog: incomplete row")
	// ErrDuplicateBarcode indicates a barcode seen before.
	ErrDuplicateBarcode = errors.New("catalog: duplicate barcode")
	// ErrInvalidQuantity indicates a stock balance that does not parse.
	ErrInvalidQuantity = errors.New("catalog: stock balance must be an integer")
	// ErrImportRejected is returned when a batch carries any diagnostic.
	ErrImportRejected = errors.New("catalog: import rejected")
	// ErrEmptyImport is returned when a file has no data rows.
	ErrEmptyImport = errors.New("catalog: no rows to import")
	// ErrMissingHeader is returned when the input has no header line.
	ErrMissingHeader = errors.New("catalog: header row required")
)

// ImportError is a single row diagnostic. Line counts the header as line 1.
type ImportError struct {
	Line    int       `json:"line"`
	Kind    ErrorKind `json:"kind"`
	Barcode string    `json:"barcode,omitempty"`
}

// Error renders the diagnostic the way operators see it on screen.
func (e ImportError) Error() string {
	switch e.Kind {
	case KindDuplicateBarcode:
		return fmt.Sprintf("Linha %d: Código de barras %s duplicado", e.Line, e.Barcode)
	case KindInvalidQuantity:
		return fmt.Sprintf("Linha %d: Saldo de estoque deve ser um número", e.Line)
	default:
		return fmt.Sprintf("Linha %d: Dados incompletos", e.Line)
	}
}

// Unwrap exposes the sentinel matching the kind.
func (e ImportError) Unwrap() error {
	switch e.Kind {
	case KindDuplicateBarcode:
		return ErrDuplicateBarcode
	case KindInvalidQuantity:
		return ErrInvalidQuantity
	default:
		return ErrIncompleteRow
	}
}

// ImportResult summarises one import call.
type ImportResult struct {
	Imported int           `json:"imported"`
	Errors   []ImportError `json:"errors"`
}

// Messages returns the diagnostics as display strings, in row order.
func (r ImportResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Error())
	}
	return out
}

// OK reports whether the batch was committed.
func (r ImportResult) OK() bool {
	return len(r.Errors) == 0 && r.Imported > 0
}
