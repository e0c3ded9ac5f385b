package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
)

// SnapshotTimeLayout matches the ISO-8601 millisecond form used in the blob.
const SnapshotTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrCorruptSnapshot is returned when the stored blob does not parse.
var ErrCorruptSnapshot = errors.New("storage: corrupt snapshot")

// Snapshot is the full persisted session state.
type Snapshot struct {
	Products      []catalog.Product       `json:"products"`
	BarCodes      []catalog.BarCode       `json:"barCodes"`
	ProductCounts []counting.ProductCount `json:"productCounts"`
	Timestamp     string                  `json:"timestamp"`
}

// Empty reports whether the snapshot holds no data.
func (s Snapshot) Empty() bool {
	return len(s.Products) == 0 && len(s.BarCodes) == 0 && len(s.ProductCounts) == 0
}

func (s *Snapshot) normalise() {
	if s.Products == nil {
		s.Products = []catalog.Product{}
	}
	if s.BarCodes == nil {
		s.BarCodes = []catalog.BarCode{}
	}
	if s.ProductCounts == nil {
		s.ProductCounts = []counting.ProductCount{}
	}
}

// Mirror writes the whole session state to one key, last write wins.
type Mirror struct {
	store  Store
	key    string
	logger *slog.Logger
	now    func() time.Time
}

// NewMirror builds a Mirror. An empty key falls back to DefaultKey.
func NewMirror(store Store, key string, logger *slog.Logger) *Mirror {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{store: store, key: key, logger: logger, now: time.Now}
}

// Key returns the storage key in use.
func (m *Mirror) Key() string {
	return m.key
}

// Save overwrites the stored blob, stamping the snapshot time.
func (m *Mirror) Save(ctx context.Context, snap Snapshot) error {
	snap.normalise()
	snap.Timestamp = m.now().UTC().Format(SnapshotTimeLayout)
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	if err := m.store.Set(ctx, m.key, string(payload)); err != nil {
		return err
	}
	return nil
}

// Load reads the stored blob. The boolean is false when nothing was stored.
func (m *Mirror) Load(ctx context.Context) (Snapshot, bool, error) {
	raw, err := m.store.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return emptySnapshot(), false, nil
		}
		return emptySnapshot(), false, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return emptySnapshot(), false, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	snap.normalise()
	m.logger.Debug("snapshot loaded",
		slog.String("key", m.key),
		slog.Int("products", len(snap.Products)),
		slog.Int("counts", len(snap.ProductCounts)))
	return snap, true, nil
}

// Clear removes the stored blob.
func (m *Mirror) Clear(ctx context.Context) error {
	return m.store.Remove(ctx, m.key)
}

func emptySnapshot() Snapshot {
	var s Snapshot
	s.normalise()
	return s
}
