package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
	"github.com/odyssey-erp/stockcount/internal/export"
	"github.com/odyssey-erp/stockcount/internal/storage"
)

var (
	// ErrValidationRejected marks an operation refused because of user input.
	// The session is left unchanged.
	ErrValidationRejected = errors.New("session: validation rejected")
)

// Config groups optional settings of Service.
type Config struct {
	Charset string
	IDs     catalog.IDSource
	Ledger  []counting.LedgerOption
	Now     func() time.Time
	Bus     evbus.Bus
}

// Service owns the catalog, the count ledger and the pending selection of one
// counting session. Every mutation goes through its methods, one at a time.
type Service struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	ledger  *counting.Ledger
	mirror  *storage.Mirror
	bus     evbus.Bus
	logger  *slog.Logger
	charset string
	now     func() time.Time

	scanInput        string
	quantityInput    string
	current          *catalog.Product
	mode             counting.Mode
	location         counting.Location
	lastImportErrors []string
	restoreFailed    bool
	persistErr       error
}

// NewService builds a Service. When mirror is set it subscribes to state
// changes and persists every one of them.
func NewService(mirror *storage.Mirror, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = evbus.New()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ledgerOpts := append([]counting.LedgerOption{counting.WithClock(now)}, cfg.Ledger...)
	s := &Service{
		catalog:  catalog.New(cfg.IDs),
		ledger:   counting.NewLedger(ledgerOpts...),
		mirror:   mirror,
		bus:      bus,
		logger:   logger,
		charset:  cfg.Charset,
		now:      now,
		mode:     counting.ModeStore,
		location: counting.DefaultLocation,
	}
	if mirror != nil {
		if err := bus.Subscribe(TopicStateChanged, s.persist); err != nil {
			logger.Error("subscribe mirror", slog.Any("error", err))
		}
	}
	return s
}

// Subscribe registers fn on the service event bus.
func (s *Service) Subscribe(topic string, fn interface{}) error {
	return s.bus.Subscribe(topic, fn)
}

func (s *Service) persist(ctx context.Context, snap storage.Snapshot) {
	if err := s.mirror.Save(ctx, snap); err != nil {
		s.logger.Error("persist session state", slog.String("key", s.mirror.Key()), slog.Any("error", err))
		s.persistErr = err
	}
}

// TopicPersistFailed carries the error of a failed mirror write.
const TopicPersistFailed = "session:persist_failed"

// LoadReport describes what Load restored.
type LoadReport struct {
	Found    bool
	Corrupt  bool
	Products int
	BarCodes int
	Counts   int
	Dropped  int
}

// Load restores the persisted state once at start. Missing or corrupt state
// leaves the session empty and only a corrupt blob is flagged. Any other read
// failure is returned so the caller does not overwrite state it never saw.
func (s *Service) Load(ctx context.Context) (LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report LoadReport
	if s.mirror == nil {
		return report, nil
	}
	snap, found, err := s.mirror.Load(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrCorruptSnapshot) {
			return report, fmt.Errorf("session: load state: %w", err)
		}
		report.Corrupt = true
		s.restoreFailed = true
		s.logger.Error("load persisted state", slog.String("key", s.mirror.Key()), slog.Any("error", err))
		return report, nil
	}
	if !found {
		return report, nil
	}
	report.Found = true
	report.Dropped = s.catalog.Restore(snap.Products, snap.BarCodes)
	report.Dropped += s.ledger.Restore(snap.ProductCounts)
	report.Products = s.catalog.Len()
	report.BarCodes = len(s.catalog.BarCodes())
	report.Counts = s.ledger.Len()
	s.logger.Info("persisted state loaded",
		slog.Int("products", report.Products),
		slog.Int("counts", report.Counts),
		slog.Int("dropped", report.Dropped),
		slog.String("saved_at", snap.Timestamp))
	return report, nil
}

// Import reads a catalog file and appends its rows when all are valid.
func (s *Service) Import(ctx context.Context, r io.Reader) (catalog.ImportResult, error) {
	rows, err := catalog.ReadRows(r, catalog.ReadOptions{Charset: s.charset})
	if err != nil {
		return catalog.ImportResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.catalog.Import(rows)
	s.lastImportErrors = result.Messages()
	s.bus.Publish(TopicImported, ImportedEvent{Rows: len(rows), Imported: result.Imported, Errors: result.Errors})
	if len(rows) == 0 {
		return result, catalog.ErrEmptyImport
	}
	if !result.OK() {
		s.logger.Info("catalog import rejected", slog.Int("rows", len(rows)), slog.Int("errors", len(result.Errors)))
		return result, catalog.ErrImportRejected
	}
	s.logger.Info("catalog imported", slog.Int("products", result.Imported))
	s.changed(ctx)
	return result, nil
}

// ScanResult is the outcome of resolving a barcode.
type ScanResult struct {
	Found   bool             `json:"found"`
	Barcode string           `json:"codigo_de_barras"`
	Product *catalog.Product `json:"product,omitempty"`
}

// Scan resolves a barcode. A miss is not an error: the caller is expected to
// offer QuickRegister for the returned barcode.
func (s *Service) Scan(_ context.Context, barcode string) (ScanResult, error) {
	if barcode == "" {
		return ScanResult{}, fmt.Errorf("%w: informe o código de barras", ErrValidationRejected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanInput = barcode
	p, ok := s.catalog.Lookup(barcode)
	if !ok {
		s.current = nil
		return ScanResult{Found: false, Barcode: barcode}, nil
	}
	s.current = &p
	return ScanResult{Found: true, Barcode: barcode, Product: &p}, nil
}

// QuickRegisterInput carries the inline registration form.
type QuickRegisterInput struct {
	Barcode     string
	Description string
	Quantity    string
}

// QuickRegister creates a zero-balance product for an unresolved barcode,
// selects it and pre-fills the pending quantity.
func (s *Service) QuickRegister(ctx context.Context, in QuickRegisterInput) (catalog.Product, error) {
	if in.Barcode == "" || in.Description == "" || in.Quantity == "" {
		return catalog.Product{}, fmt.Errorf("%w: código de barras, descrição e quantidade são obrigatórios", ErrValidationRejected)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.catalog.Lookup(in.Barcode); exists {
		return catalog.Product{}, fmt.Errorf("%w: %s", catalog.ErrDuplicateBarcode, in.Barcode)
	}
	p := s.catalog.Register(in.Barcode, in.Description)
	s.current = &p
	s.scanInput = in.Barcode
	s.quantityInput = in.Quantity
	s.bus.Publish(TopicRegistered, p)
	s.logger.Info("product registered inline", slog.String("barcode", in.Barcode), slog.String("code", p.Code))
	s.changed(ctx)
	return p, nil
}

// SetQuantity stores the pending quantity text.
func (s *Service) SetQuantity(_ context.Context, quantity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantityInput = quantity
}

// SetMode switches the counting mode.
func (s *Service) SetMode(_ context.Context, mode counting.Mode) error {
	if !mode.Valid() {
		return counting.ErrInvalidMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// SetLocation switches the active location used for new counts.
func (s *Service) SetLocation(_ context.Context, location counting.Location) error {
	if !location.Valid() {
		return counting.ErrInvalidLocation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = location
	return nil
}

// AddCount records the pending quantity for the current product under the
// active mode and clears the pending selection.
func (s *Service) AddCount(ctx context.Context) (counting.ProductCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.quantityInput == "" {
		return counting.ProductCount{}, fmt.Errorf("%w: selecione um produto e informe a quantidade", ErrValidationRejected)
	}
	qty, ok := catalog.ParseInt(s.quantityInput)
	if !ok || qty < 0 {
		return counting.ProductCount{}, fmt.Errorf("%w: quantidade inválida", ErrValidationRejected)
	}
	key := s.scanInput
	if key == "" {
		if bound, found := s.catalog.BarcodeFor(s.current.ID); found {
			key = bound
		}
	}
	rec, created, err := s.ledger.Upsert(counting.UpsertInput{
		Barcode:      key,
		ProductCode:  s.current.Code,
		Description:  s.current.Description,
		StockBalance: s.current.StockBalance,
		Quantity:     qty,
		Mode:         s.mode,
		Location:     s.location,
	})
	if err != nil {
		return counting.ProductCount{}, fmt.Errorf("%w: %v", ErrValidationRejected, err)
	}
	s.scanInput = ""
	s.quantityInput = ""
	s.current = nil
	s.bus.Publish(TopicCountRecorded, CountRecordedEvent{Count: rec, Field: s.mode.Field(), Created: created})
	s.changed(ctx)
	return rec, nil
}

// EditCount overwrites one quantity of an existing record.
func (s *Service) EditCount(ctx context.Context, id string, field counting.Field, value int) (counting.ProductCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.ledger.Edit(id, field, value)
	if err != nil {
		return counting.ProductCount{}, err
	}
	s.bus.Publish(TopicCountRecorded, CountRecordedEvent{Count: rec, Field: field})
	s.changed(ctx)
	return rec, nil
}

// RemoveCount deletes a record. Removing an unknown id changes nothing and
// reports counting.ErrCountNotFound.
func (s *Service) RemoveCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ledger.Get(id)
	if !ok {
		return counting.ErrCountNotFound
	}
	s.ledger.Remove(id)
	s.bus.Publish(TopicCountRemoved, rec)
	s.changed(ctx)
	return nil
}

// Export renders the ledger for download, named after the active location.
func (s *Service) Export(_ context.Context, format export.Format) (export.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.Build(s.ledger.List(), s.location, format, s.now())
}

// ClearAll removes the persisted state and resets every collection and the
// pending selection. Mode and location are preferences and survive.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Clear(ctx); err != nil {
			return fmt.Errorf("session: clear persisted state: %w", err)
		}
	}
	s.catalog.Reset()
	s.ledger.Reset()
	s.scanInput = ""
	s.quantityInput = ""
	s.current = nil
	s.lastImportErrors = nil
	s.restoreFailed = false
	s.bus.Publish(TopicCleared, ClearedEvent{At: s.now()})
	s.logger.Warn("session data cleared")
	return nil
}

// StateView is a read-only picture of the session.
type StateView struct {
	ScanInput        string            `json:"scan_input"`
	QuantityInput    string            `json:"quantity_input"`
	CurrentProduct   *catalog.Product  `json:"current_product"`
	Mode             counting.Mode     `json:"mode"`
	Location         counting.Location `json:"location"`
	LocationLabel    string            `json:"location_label"`
	Products         int               `json:"products"`
	BarCodes         int               `json:"bar_codes"`
	Counts           int               `json:"counts"`
	LastImportErrors []string          `json:"last_import_errors"`
	RestoreFailed    bool              `json:"restore_failed"`
}

// State returns the current session picture.
func (s *Service) State(_ context.Context) StateView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := StateView{
		ScanInput:        s.scanInput,
		QuantityInput:    s.quantityInput,
		Mode:             s.mode,
		Location:         s.location,
		LocationLabel:    s.location.Label(),
		Products:         s.catalog.Len(),
		BarCodes:         len(s.catalog.BarCodes()),
		Counts:           s.ledger.Len(),
		LastImportErrors: append([]string{}, s.lastImportErrors...),
		RestoreFailed:    s.restoreFailed,
	}
	if s.current != nil {
		p := *s.current
		view.CurrentProduct = &p
	}
	return view
}

// Products lists the catalog.
func (s *Service) Products(_ context.Context) []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Products()
}

// BarCodes lists the barcode table.
func (s *Service) BarCodes(_ context.Context) []catalog.BarCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.BarCodes()
}

// Counts lists the ledger.
func (s *Service) Counts(_ context.Context) []counting.ProductCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.List()
}

// Summary aggregates the ledger variance.
func (s *Service) Summary(_ context.Context) counting.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Summary()
}

// Snapshot returns the persistable state.
func (s *Service) Snapshot(_ context.Context) storage.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Service) snapshot() storage.Snapshot {
	return storage.Snapshot{
		Products:      s.catalog.Products(),
		BarCodes:      s.catalog.BarCodes(),
		ProductCounts: s.ledger.List(),
	}
}

// changed must be called with mu held. Handlers run synchronously under the
// bus lock, so the failure topic is published only once they return.
func (s *Service) changed(ctx context.Context) {
	s.persistErr = nil
	s.bus.Publish(TopicStateChanged, ctx, s.snapshot())
	if s.persistErr != nil {
		s.bus.Publish(TopicPersistFailed, s.persistErr)
	}
}
