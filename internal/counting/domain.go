package counting

import (
	"errors"
	"time"
)

// Mode selects which quantity field the next count is written to.
type Mode string

const (
	// ModeStore attributes counts to the store (shop floor) quantity.
	ModeStore Mode = "loja"
	// ModeWarehouse attributes counts to the warehouse quantity.
	ModeWarehouse Mode = "estoque"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeStore || m == ModeWarehouse
}

// Field returns the quantity field written in this mode.
func (m Mode) Field() Field {
	if m == ModeWarehouse {
		return FieldWarehouse
	}
	return FieldStore
}

// Field names an editable quantity of a ProductCount.
type Field string

const (
	// FieldStore is the store quantity column.
	FieldStore Field = "quant_loja"
	// FieldWarehouse is the warehouse quantity column.
	FieldWarehouse Field = "quant_estoque"
)

// Valid reports whether f is an editable field.
func (f Field) Valid() bool {
	return f == FieldStore || f == FieldWarehouse
}

// Location tags a count with where it was taken. Labels only.
type Location string

const (
	LocationStore1           Location = "loja-1"
	LocationStore2           Location = "loja-2"
	LocationWarehouse        Location = "deposito"
	LocationCentralWarehouse Location = "estoque-central"
)

// DefaultLocation is selected when a session starts.
const DefaultLocation = LocationStore1

var locationLabels = []struct {
	value Location
	label string
}{
	{LocationStore1, "Loja 1"},
	{LocationStore2, "Loja 2"},
	{LocationWarehouse, "Depósito"},
	{LocationCentralWarehouse, "Estoque Central"},
}

// LocationOption pairs a location value with its display label.
type LocationOption struct {
	Value Location `json:"value"`
	Label string   `json:"label"`
}

// Locations lists the fixed set of counting locations in display order.
func Locations() []LocationOption {
	out := make([]LocationOption, 0, len(locationLabels))
	for _, l := range locationLabels {
		out = append(out, LocationOption{Value: l.value, Label: l.label})
	}
	return out
}

// Valid reports whether l is one of the fixed locations.
func (l Location) Valid() bool {
	for _, known := range locationLabels {
		if known.value == l {
			return true
		}
	}
	return false
}

// Label returns the display label, or the raw value when unknown.
func (l Location) Label() string {
	for _, known := range locationLabels {
		if known.value == l {
			return known.label
		}
	}
	return string(l)
}

// TimestampLayout renders data_hora the way pt-BR users read it.
const TimestampLayout = "02/01/2006, 15:04:05"

// ProductCount is the reconciliation record of one barcode. Catalog fields
// are snapshotted at first count and never refreshed.
type ProductCount struct {
	ID                string   `json:"id"`
	Barcode           string   `json:"codigo_de_barras"`
	ProductCode       string   `json:"codigo_produto"`
	Description       string   `json:"descricao"`
	StockBalance      int      `json:"saldo_estoque"`
	StoreQuantity     int      `json:"quant_loja"`
	WarehouseQuantity int      `json:"quant_estoque"`
	Total             int      `json:"total"`
	Location          Location `json:"local_estoque"`
	Timestamp         string   `json:"data_hora"`
}

// Variance computes store + warehouse - stock balance.
func Variance(store, warehouse, stockBalance int) int {
	return store + warehouse - stockBalance
}

func (c *ProductCount) recompute(now time.Time) {
	c.Total = Variance(c.StoreQuantity, c.WarehouseQuantity, c.StockBalance)
	c.Timestamp = now.Format(TimestampLayout)
}

// UpsertInput carries what a count action needs. Barcode is the ledger key.
type UpsertInput struct {
	Barcode      string
	ProductCode  string
	Description  string
	StockBalance int
	Quantity     int
	Mode         Mode
	Location     Location
}

var (
	// ErrCountNotFound indicates no record for the given id.
	ErrCountNotFound = errors.New("counting: count not found")
	// ErrInvalidMode indicates an unknown counting mode.
	ErrInvalidMode = errors.New("counting: invalid mode")
	// ErrInvalidField indicates an unknown quantity field.
	ErrInvalidField = errors.New("counting: invalid field")
	// ErrInvalidLocation indicates a location outside the fixed list.
	ErrInvalidLocation = errors.New("counting: invalid location")
	// ErrNegativeQuantity indicates a quantity below zero.
	ErrNegativeQuantity = errors.New("counting: quantity must be >= 0")
	// ErrMissingBarcode indicates an upsert without a key.
	ErrMissingBarcode = errors.New("counting: barcode required")
)
