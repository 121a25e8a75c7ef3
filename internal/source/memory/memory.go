package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/yaml.v3"

	"workdiary/internal/core"
	"workdiary/internal/source"
)

// SeedFile is the file NewFromFiles looks for inside the data directory.
const SeedFile = "entries.yaml"

var (
	_ source.EntryReader = (*Store)(nil)
	_ source.EntryWriter = (*Store)(nil)
)

type Store struct {
	mu      sync.Mutex
	entries []core.Entry
}

func New(entries []core.Entry) *Store {
	return &Store{entries: append([]core.Entry(nil), entries...)}
}

// NewFromFiles loads base/entries.yaml, falling back to DefaultEntries when the
// file is missing, empty or unreadable.
func NewFromFiles(base string) *Store {
	path := filepath.Join(base, SeedFile)
	entries, err := LoadSeedFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Ignoring seed file", "path", path, "error", err)
		}
		return New(DefaultEntries())
	}
	if len(entries) == 0 {
		return New(DefaultEntries())
	}
	return New(entries)
}

// ListEntries returns a copy of the stored entries.
func (s *Store) ListEntries(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.entries...), nil
}

// ReplaceEntries swaps the stored entries after validating all of them.
func (s *Store) ReplaceEntries(_ context.Context, entries []core.Entry) (int, error) {
	if err := core.ValidateAll(entries); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]core.Entry(nil), entries...)
	return len(s.entries), nil
}

type seedEntry struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
	Date    string `yaml:"date"`
}

// LoadSeedFile reads a YAML list of {title, content, date} records.
func LoadSeedFile(path string) ([]core.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Dates accept any format dateparse understands.
func ParseSeed(data []byte) ([]core.Entry, error) {
	var raw []seedEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	out := make([]core.Entry, 0, len(raw))
	for i, r := range raw {
		d, err := ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		e := core.Entry{
			Title:   strings.TrimSpace(r.Title),
			Content: strings.TrimSpace(r.Content),
			Date:    d,
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseDate parses a calendar date leniently and drops any time of day.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, core.ErrZeroDate
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
}
