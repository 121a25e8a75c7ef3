package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workdiary/internal/core"
	"workdiary/internal/source"
	"workdiary/internal/storage"
)

// Target is the store an import writes into.
type Target interface {
	source.EntryReader
	source.EntryWriter
	RecordImport(ctx context.Context, rec storage.ImportRecord) error
}

// Publisher announces a replaced entry set.
type Publisher interface {
	PublishEntriesChanged(ctx context.Context, count int, source string) error
}

// Result summarises one import run.
type Result struct {
	Read    int
	Written int
	Changed bool
}

// ImportWorker copies entries from a remote source (Google Sheets) into the
// local store and tells the web servers when the set changed.
type ImportWorker struct {
	from       source.EntryReader
	to         Target
	publisher  Publisher
	sourceName string
	timeout    time.Duration
}

func NewImportWorker(from source.EntryReader, to Target, publisher Publisher, sourceName string) *ImportWorker {
	return &ImportWorker{
		from:       from,
		to:         to,
		publisher:  publisher,
		sourceName: sourceName,
		timeout:    30 * time.Second,
	}
}

// RunOnce performs a single import. The store is only rewritten when the
// remote entries differ from the stored ones.
func (w *ImportWorker) RunOnce(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	remote, err := w.from.ListEntries(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read %s entries: %w", w.sourceName, err)
	}
	if err := core.ValidateAll(remote); err != nil {
		return Result{Read: len(remote)}, fmt.Errorf("validate %s entries: %w", w.sourceName, err)
	}

	local, err := w.to.ListEntries(ctx)
	if err != nil {
		return Result{Read: len(remote)}, fmt.Errorf("read stored entries: %w", err)
	}

	res := Result{Read: len(remote)}
	if !sameEntries(remote, local) {
		n, err := w.to.ReplaceEntries(ctx, remote)
		if err != nil {
			return res, fmt.Errorf("replace stored entries: %w", err)
		}
		res.Written = n
		res.Changed = true
	}

	rec := storage.ImportRecord{
		Source:     w.sourceName,
		EntryCount: len(remote),
		Changed:    res.Changed,
	}
	if err := w.to.RecordImport(ctx, rec); err != nil {
		slog.WarnContext(ctx, "Failed to record import", "error", err, "source", w.sourceName)
	}

	if res.Changed && w.publisher != nil {
		if err := w.publisher.PublishEntriesChanged(ctx, res.Written, w.sourceName); err != nil {
			// The store is already updated; servers pick it up when their cache expires.
			slog.WarnContext(ctx, "Failed to publish entries changed", "error", err)
		}
	}

	return res, nil
}

// Run imports once immediately and then every interval until ctx is done.
// Failed runs are logged and retried on the next tick.
func (w *ImportWorker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("import interval must be positive")
	}

	w.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Import worker stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *ImportWorker) runLogged(ctx context.Context) {
	start := time.Now()
	res, err := w.RunOnce(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Import failed", "error", err, "source", w.sourceName)
		return
	}
	slog.InfoContext(ctx, "Import completed",
		"source", w.sourceName,
		"read", res.Read,
		"changed", res.Changed,
		"duration_ms", time.Since(start).Milliseconds())
}

func sameEntries(a, b []core.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Title != b[i].Title || a[i].Content != b[i].Content || !a[i].Date.Equal(b[i].Date.Time) {
			return false
		}
	}
	return true
}
