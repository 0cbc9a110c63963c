package items

import (
	"context"
	"fmt"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
)

// LogFinder is the read side of the item_logs store.
type LogFinder interface {
	FindAll(ctx context.Context, filter typesdb.Filter) ([]typesdb.Record, error)
}

// ListLogsRequest represents the input for listing an item's quantity log
type ListLogsRequest struct {
	ItemID string `json:"item_id"`
	Limit  int    `json:"limit"`
}

// ListLogsResponse represents the output for listing an item's quantity log
type ListLogsResponse struct {
	Logs []typesdb.Record `json:"logs"`
}

// ListLogs returns the quantity changes of one item, newest first.
func ListLogs(ctx context.Context, logs LogFinder, req ListLogsRequest) (*ListLogsResponse, error) {
	recs, err := logs.FindAll(ctx, typesdb.Filter{
		Where: typesdb.Patch{"item_id": req.ItemID},
		Desc:  true,
		Limit: req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list item logs: %w", err)
	}
	if recs == nil {
		recs = []typesdb.Record{}
	}
	return &ListLogsResponse{Logs: recs}, nil
}
