package items

import (
	"fmt"
	"math"
	"sync"

	"github.com/Voltaic314/GameLedger/code/db/tables"
	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
)

// ErrNegativeQuantity is returned when an adjustment would take a quantity
// below zero. It is an ErrInvalidValue.
var ErrNegativeQuantity = fmt.Errorf("%w: quantity cannot go below zero", tables.ErrInvalidValue)

// ItemEditor is the part of the list editor an adjustment needs.
type ItemEditor interface {
	Get(id string) (typesdb.Record, error)
	Edit(id, field string, value any) error
}

// LogAppender queues an insert on a log table.
type LogAppender interface {
	Append(rec typesdb.Record) (string, error)
}

// AdjustRequest represents the input for adjusting an item quantity
type AdjustRequest struct {
	ItemID string `json:"item_id"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustResponse represents the output for adjusting an item quantity
type AdjustResponse struct {
	ItemID        string `json:"item_id"`
	LogID         string `json:"log_id"`
	QuantityAfter int64  `json:"quantity_after"`
}

// Adjuster applies quantity changes to items and logs each one. Adjustments
// to the same Adjuster are serialized so read-modify-write never interleaves.
type Adjuster struct {
	mu    sync.Mutex
	items ItemEditor
	logs  LogAppender
}

// NewAdjuster returns an Adjuster editing through items and logging to logs.
func NewAdjuster(items ItemEditor, logs LogAppender) *Adjuster {
	return &Adjuster{items: items, logs: logs}
}

// AdjustQuantity changes the item's quantity by delta. The in-memory record is
// updated at once and persisted through the debounced edit path; the log row
// goes through the batched log queue.
func (a *Adjuster) AdjustQuantity(req AdjustRequest) (*AdjustResponse, error) {
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", tables.ErrInvalidValue)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	item, err := a.items.Get(req.ItemID)
	if err != nil {
		return nil, err
	}
	current, err := quantity(item)
	if err != nil {
		return nil, err
	}
	if (req.Delta > 0 && current > math.MaxInt64-req.Delta) || (req.Delta < 0 && current < math.MinInt64-req.Delta) {
		return nil, fmt.Errorf("%w: %s has %d, delta %d overflows", tables.ErrInvalidValue, req.ItemID, current, req.Delta)
	}
	after := current + req.Delta
	if after < 0 {
		return nil, fmt.Errorf("%w: %s has %d, delta %d", ErrNegativeQuantity, req.ItemID, current, req.Delta)
	}

	if err := a.items.Edit(req.ItemID, "quantity", after); err != nil {
		return nil, err
	}

	logID, err := a.logs.Append(typesdb.Record{Fields: typesdb.Patch{
		"item_id":        req.ItemID,
		"delta":          req.Delta,
		"quantity_after": after,
		"reason":         req.Reason,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to log adjustment: %w", err)
	}

	return &AdjustResponse{ItemID: req.ItemID, LogID: logID, QuantityAfter: after}, nil
}

func quantity(item typesdb.Record) (int64, error) {
	v, _ := item.Get("quantity")
	switch v := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if n, ok := tables.Int64(v); ok {
			return n, nil
		}
		return 0, fmt.Errorf("%w: quantity of %s is %v", tables.ErrInvalidValue, item.ID, v)
	default:
		return 0, fmt.Errorf("%w: quantity of %s is %T", tables.ErrInvalidValue, item.ID, v)
	}
}
