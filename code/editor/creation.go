package editor

import (
	"context"

	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
)

// Creation tracks the persisted create behind an optimistic Add.
type Creation struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	rec    typesdb.Record
	err    error
}

// ID is the identity allocated for the new record.
func (c *Creation) ID() string {
	return c.id
}

// Done is closed once the create resolved.
func (c *Creation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the create resolved and returns the stored record, or the
// create error. A failed create has already been rolled back from the list.
func (c *Creation) Wait(ctx context.Context) (typesdb.Record, error) {
	select {
	case <-c.done:
		if c.err != nil {
			return typesdb.Record{}, c.err
		}
		return c.rec.Clone(), nil
	case <-ctx.Done():
		return typesdb.Record{}, ctx.Err()
	}
}
