package source

import (
	"context"

	"workdiary/internal/core"
)

// Ports for entry backends.
type (
	// EntryReader returns the full diary in its original order.
	EntryReader interface {
		ListEntries(ctx context.Context) ([]core.Entry, error)
	}

	// EntryWriter replaces the stored diary with the given entries, keeping
	// their order, and reports how many were written.
	EntryWriter interface {
		ReplaceEntries(ctx context.Context, entries []core.Entry) (int, error)
	}
)
