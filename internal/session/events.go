package session

import (
	"time"

	"github.com/odyssey-erp/stockcount/internal/catalog"
	"github.com/odyssey-erp/stockcount/internal/counting"
)

// Event bus topics published by Service.
const (
	// TopicStateChanged carries (context.Context, storage.Snapshot) after any
	// change to products, barcodes or counts.
	TopicStateChanged = "session:state_changed"
	// TopicImported carries an ImportedEvent after every import attempt.
	TopicImported = "catalog:imported"
	// TopicRegistered carries the catalog.Product created inline.
	TopicRegistered = "catalog:registered"
	// TopicCountRecorded carries a CountRecordedEvent.
	TopicCountRecorded = "count:recorded"
	// TopicCountRemoved carries the removed counting.ProductCount.
	TopicCountRemoved = "count:removed"
	// TopicCleared carries a ClearedEvent.
	TopicCleared = "session:cleared"
)

// ImportedEvent describes one import attempt.
type ImportedEvent struct {
	Rows     int
	Imported int
	Errors   []catalog.ImportError
}

// CountRecordedEvent describes an upsert or an edit of a count.
type CountRecordedEvent struct {
	Count   counting.ProductCount
	Field   counting.Field
	Created bool
}

// ClearedEvent is published after a full wipe.
type ClearedEvent struct {
	At time.Time
}
