package catalog

import (
	"strconv"
	"strings"
	"unicode"
)

// IDSource hands out product identifiers.
type IDSource interface {
	Next() int64
}

// Catalog holds the append-only product and barcode tables of a session.
// It is not safe for concurrent use; the session controller serialises access.
type Catalog struct {
	products []Product
	barcodes []BarCode
	byCode   map[string]int
	byID     map[int64]int
	ids      IDSource
}

// New builds an empty catalog. A nil source falls back to snowflake ids.
func New(ids IDSource) *Catalog {
	if ids == nil {
		ids = DefaultIDSource()
	}
	c := &Catalog{ids: ids}
	c.Reset()
	return c
}

// Reset drops every product and barcode.
func (c *Catalog) Reset() {
	c.products = nil
	c.barcodes = nil
	c.byCode = make(map[string]int)
	c.byID = make(map[int64]int)
}

// Restore replaces the catalog with previously persisted tables. Barcodes
// pointing at unknown products are dropped and counted.
func (c *Catalog) Restore(products []Product, barcodes []BarCode) int {
	c.Reset()
	for _, p := range products {
		if _, ok := c.byID[p.ID]; ok {
			continue
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	dropped := 0
	for _, bc := range barcodes {
		if _, ok := c.byID[bc.ProductID]; !ok {
			dropped++
			continue
		}
		if _, ok := c.byCode[bc.Barcode]; ok {
			dropped++
			continue
		}
		c.byCode[bc.Barcode] = len(c.barcodes)
		c.barcodes = append(c.barcodes, bc)
	}
	return dropped
}

// Products returns a copy of the product table in insertion order.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// BarCodes returns a copy of the barcode table in insertion order.
func (c *Catalog) BarCodes() []BarCode {
	out := make([]BarCode, len(c.barcodes))
	copy(out, c.barcodes)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Product finds a product by id.
func (c *Catalog) Product(id int64) (Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// Lookup resolves a scanned barcode to its product. It never mutates state.
func (c *Catalog) Lookup(barcode string) (Product, bool) {
	idx, ok := c.byCode[barcode]
	if !ok {
		return Product{}, false
	}
	return c.Product(c.barcodes[idx].ProductID)
}

// BarcodeFor returns the first barcode bound to a product.
func (c *Catalog) BarcodeFor(productID int64) (string, bool) {
	for _, bc := range c.barcodes {
		if bc.ProductID == productID {
			return bc.Barcode, true
		}
	}
	return "", false
}

// Import validates rows and appends them only when every row is valid.
func (c *Catalog) Import(rows []Row) ImportResult {
	result := ImportResult{Errors: []ImportError{}}
	seen := make(map[string]struct{}, len(c.byCode)+len(rows))
	for code := range c.byCode {
		seen[code] = struct{}{}
	}

	var (
		newProducts []Product
		newBarcodes []BarCode
		batchIDs    = make(map[int64]struct{}, len(rows))
	)
	for i, row := range rows {
		line := i + 2
		barcode, hasBarcode := row[ColumnBarcode]
		code, hasCode := row[ColumnProductCode]
		description, hasDescription := row[ColumnDescription]
		balance, hasBalance := row[ColumnStockBalance]

		if !hasBarcode || barcode == "" || !hasCode || code == "" || !hasDescription || description == "" || !hasBalance {
			result.Errors = append(result.Errors, ImportError{Line: line, Kind: KindIncompleteRow})
			continue
		}
		if _, dup := seen[barcode]; dup {
			result.Errors = append(result.Errors, ImportError{Line: line, Kind: KindDuplicateBarcode, Barcode: barcode})
			continue
		}
		qty, ok := ParseInt(balance)
		if !ok {
			result.Errors = append(result.Errors, ImportError{Line: line, Kind: KindInvalidQuantity, Barcode: barcode})
			continue
		}

		id := c.nextID(batchIDs)
		batchIDs[id] = struct{}{}
		product := Product{ID: id, Code: code, Description: description, StockBalance: qty}
		newProducts = append(newProducts, product)
		newBarcodes = append(newBarcodes, BarCode{Barcode: barcode, ProductID: id})
		seen[barcode] = struct{}{}
	}

	if len(result.Errors) > 0 || len(newProducts) == 0 {
		return result
	}
	for i := range newProducts {
		c.add(newProducts[i], newBarcodes[i])
	}
	result.Imported = len(newProducts)
	return result
}

// Register adds a product with zero stock balance and a placeholder code for a
// barcode that failed resolution. No import validation runs.
func (c *Catalog) Register(barcode, description string) Product {
	id := c.nextID(nil)
	product := Product{
		ID:           id,
		Code:         TempCodePrefix + strconv.FormatInt(id, 10),
		Description:  description,
		StockBalance: 0,
	}
	c.add(product, BarCode{Barcode: barcode, ProductID: id})
	return product
}

func (c *Catalog) add(p Product, bc BarCode) {
	c.byID[p.ID] = len(c.products)
	c.products = append(c.products, p)
	c.byCode[bc.Barcode] = len(c.barcodes)
	c.barcodes = append(c.barcodes, bc)
}

func (c *Catalog) nextID(pending map[int64]struct{}) int64 {
	for {
		id := c.ids.Next()
		if _, taken := c.byID[id]; taken {
			continue
		}
		if _, taken := pending[id]; taken {
			continue
		}
		return id
	}
}

// ParseInt reads a leading integer the way spreadsheet exports are usually
// typed by hand: leading whitespace and a sign are accepted and anything after
// the digits is ignored. It fails when no digit is found.
func ParseInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return 0, false
	}
	start := 0
	if s[0] == '+' || s[0] == '-' {
		start = 1
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
