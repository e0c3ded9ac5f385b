package counting

import (
	"time"

	"github.com/google/uuid"
)

// Ledger keeps one ProductCount per barcode in first-count order. It is not
// safe for concurrent use.
type Ledger struct {
	records []ProductCount
	now     func() time.Time
	newID   func() string
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator overrides how record ids are produced.
func WithIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// NewLedger builds an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Upsert records a quantity for the active mode. An existing record for the
// barcode only gets its mode field, total and timestamp refreshed.
func (l *Ledger) Upsert(in UpsertInput) (ProductCount, bool, error) {
	if in.Barcode == "" {
		return ProductCount{}, false, ErrMissingBarcode
	}
	if !in.Mode.Valid() {
		return ProductCount{}, false, ErrInvalidMode
	}
	if in.Quantity < 0 {
		return ProductCount{}, false, ErrNegativeQuantity
	}
	now := l.now()
	if idx := l.indexOfBarcode(in.Barcode); idx >= 0 {
		rec := &l.records[idx]
		rec.set(in.Mode.Field(), in.Quantity)
		rec.recompute(now)
		return *rec, false, nil
	}
	if !in.Location.Valid() {
		return ProductCount{}, false, ErrInvalidLocation
	}
	rec := ProductCount{
		ID:           l.newID(),
		Barcode:      in.Barcode,
		ProductCode:  in.ProductCode,
		Description:  in.Description,
		StockBalance: in.StockBalance,
		Location:     in.Location,
	}
	rec.set(in.Mode.Field(), in.Quantity)
	rec.recompute(now)
	l.records = append(l.records, rec)
	return rec, true, nil
}

// Edit overwrites one quantity field of the record with the given id.
func (l *Ledger) Edit(id string, field Field, value int) (ProductCount, error) {
	if !field.Valid() {
		return ProductCount{}, ErrInvalidField
	}
	if value < 0 {
		return ProductCount{}, ErrNegativeQuantity
	}
	idx := l.indexOfID(id)
	if idx < 0 {
		return ProductCount{}, ErrCountNotFound
	}
	rec := &l.records[idx]
	rec.set(field, value)
	rec.recompute(l.now())
	return *rec, nil
}

// Remove deletes the record with the given id and reports whether it existed.
func (l *Ledger) Remove(id string) bool {
	idx := l.indexOfID(id)
	if idx < 0 {
		return false
	}
	l.records = append(l.records[:idx], l.records[idx+1:]...)
	return true
}

// Find returns the record keyed by barcode.
func (l *Ledger) Find(barcode string) (ProductCount, bool) {
	idx := l.indexOfBarcode(barcode)
	if idx < 0 {
		return ProductCount{}, false
	}
	return l.records[idx], true
}

// Get returns the record with the given id.
func (l *Ledger) Get(id string) (ProductCount, bool) {
	idx := l.indexOfID(id)
	if idx < 0 {
		return ProductCount{}, false
	}
	return l.records[idx], true
}

// List returns a copy of every record.
func (l *Ledger) List() []ProductCount {
	out := make([]ProductCount, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Reset removes every record.
func (l *Ledger) Reset() {
	l.records = nil
}

// Restore replaces the ledger with persisted records. Later duplicates of a
// barcode are dropped and counted; totals are recomputed from the quantities.
func (l *Ledger) Restore(records []ProductCount) int {
	l.records = nil
	seen := make(map[string]struct{}, len(records))
	dropped := 0
	for _, rec := range records {
		if _, dup := seen[rec.Barcode]; dup || rec.Barcode == "" {
			dropped++
			continue
		}
		seen[rec.Barcode] = struct{}{}
		rec.Total = Variance(rec.StoreQuantity, rec.WarehouseQuantity, rec.StockBalance)
		l.records = append(l.records, rec)
	}
	return dropped
}

func (l *Ledger) indexOfBarcode(barcode string) int {
	for i := range l.records {
		if l.records[i].Barcode == barcode {
			return i
		}
	}
	return -1
}

func (l *Ledger) indexOfID(id string) int {
	for i := range l.records {
		if l.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *ProductCount) set(field Field, value int) {
	if field == FieldWarehouse {
		c.WarehouseQuantity = value
		return
	}
	c.StoreQuantity = value
}
