package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"workdiary/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "diary.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sample() []core.Entry {
	return []core.Entry{
		{Title: "Week 3 (Feb 3-7)", Content: "Momentum.", Date: core.NewDate(2025, 2, 3)},
		{Title: "Week 1 (Jan 6-10)", Content: "Goals.", Date: core.NewDate(2025, 1, 6)},
		{Title: "Week 9 (Dec 2-6)", Content: "", Date: core.NewDate(2024, 12, 2)},
	}
}

func titles(entries []core.Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Title+"@"+e.Date.ISO())
	}
	return out
}

func TestMigrationsApplied(t *testing.T) {
	repo := newTestRepo(t)
	if repo.SchemaVersion() != 2 {
		t.Fatalf("schema version = %d, want 2", repo.SchemaVersion())
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestReplaceAndListKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.ReplaceEntries(ctx, sample())
	if err != nil || n != 3 {
		t.Fatalf("replace: n=%d err=%v", n, err)
	}
	got, err := repo.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(titles(sample()), titles(got)); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
	if got[0].Content != "Momentum." {
		t.Fatalf("content lost: %+v", got[0])
	}

	n, err = repo.ReplaceEntries(ctx, sample()[:1])
	if err != nil || n != 1 {
		t.Fatalf("second replace: n=%d err=%v", n, err)
	}
	if c, _ := repo.CountEntries(ctx); c != 1 {
		t.Fatalf("count after replace = %d", c)
	}
}

func TestReplaceRejectsInvalidEntries(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.ReplaceEntries(ctx, sample()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	bad := append(sample(), core.Entry{Title: "", Date: core.NewDate(2025, 1, 1)})
	if _, err := repo.ReplaceEntries(ctx, bad); !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if c, _ := repo.CountEntries(ctx); c != 3 {
		t.Fatalf("failed replace changed the table: count=%d", c)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seeded, err := repo.SeedIfEmpty(ctx, sample())
	if err != nil || !seeded {
		t.Fatalf("first seed: seeded=%v err=%v", seeded, err)
	}
	seeded, err = repo.SeedIfEmpty(ctx, sample()[:1])
	if err != nil || seeded {
		t.Fatalf("second seed: seeded=%v err=%v", seeded, err)
	}
	if c, _ := repo.CountEntries(ctx); c != 3 {
		t.Fatalf("count = %d, want 3", c)
	}
}

func TestImportRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := repo.LastImport(ctx); err != nil || ok {
		t.Fatalf("expected no imports: ok=%v err=%v", ok, err)
	}

	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := repo.RecordImport(ctx, ImportRecord{Source: "sheets", EntryCount: 4, ImportedAt: at}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.RecordImport(ctx, ImportRecord{Source: "sheets", EntryCount: 5, Changed: true, ImportedAt: at.Add(time.Hour)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	rec, ok, err := repo.LastImport(ctx)
	if err != nil || !ok {
		t.Fatalf("last import: ok=%v err=%v", ok, err)
	}
	if rec.EntryCount != 5 || !rec.Changed || !rec.ImportedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
