// Package board groups diary entries into year and month buckets and derives
// the navigator and card list from an explicit selection/expansion State.
//
// Everything here is a pure function of the entry list and the State value
// passed in; there is no package-level state.
package board

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"workdiary/internal/core"
)

var ErrBadMonthKey = errors.New("invalid month key")

// MonthKey identifies a calendar month. It is comparable and used as a map key.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf truncates a date to its calendar month.
func MonthOf(d core.Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: time.Month(d.Month())}
}

// String returns the YYYY-MM form used in URLs.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Label returns the long form, e.g. "January 2025".
func (k MonthKey) Label() string {
	return k.Month.String() + " " + strconv.Itoa(k.Year)
}

// Name returns the month name alone, e.g. "January".
func (k MonthKey) Name() string {
	return k.Month.String()
}

// Start returns the first instant of the month in UTC.
func (k MonthKey) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// After reports whether k is a later month than o.
func (k MonthKey) After(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year > o.Year
	}
	return k.Month > o.Month
}

// ParseMonthKey parses the YYYY-MM form.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	y, m, ok := strings.Cut(s, "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrBadMonthKey, s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrBadMonthKey, s)
	}
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrBadMonthKey, s)
	}
	return MonthKey{Year: year, Month: time.Month(month)}, nil
}

// EntryRef is an entry together with its position in the original list.
// The position is the entry's identity for selection.
type EntryRef struct {
	Index int
	Entry core.Entry
}

// MonthBucket holds the entries of one calendar month.
type MonthBucket struct {
	Key     MonthKey
	Entries []EntryRef
}

// YearBucket holds the months of one year, newest first.
type YearBucket struct {
	Year   int
	Months []MonthBucket
}

// Bucket groups entries by calendar month, then by year. Years and months are
// sorted newest first; entries keep their original relative order inside a
// month, and a month seen again later in the input appends to its bucket.
func Bucket(entries []core.Entry) []YearBucket {
	pos := make(map[MonthKey]int)
	var months []MonthBucket
	for i, e := range entries {
		k := MonthOf(e.Date)
		p, ok := pos[k]
		if !ok {
			p = len(months)
			pos[k] = p
			months = append(months, MonthBucket{Key: k})
		}
		months[p].Entries = append(months[p].Entries, EntryRef{Index: i, Entry: e})
	}

	sort.SliceStable(months, func(i, j int) bool {
		return months[i].Key.After(months[j].Key)
	})

	// Months are sorted, so each year is a contiguous run.
	var years []YearBucket
	for _, m := range months {
		if n := len(years); n > 0 && years[n-1].Year == m.Key.Year {
			years[n-1].Months = append(years[n-1].Months, m)
			continue
		}
		years = append(years, YearBucket{Year: m.Key.Year, Months: []MonthBucket{m}})
	}
	return years
}

// Board holds an immutable entry list and its buckets, computed once.
type Board struct {
	entries []core.Entry
	years   []YearBucket
	months  map[MonthKey]int
}

func New(entries []core.Entry) *Board {
	own := append([]core.Entry(nil), entries...)
	b := &Board{
		entries: own,
		years:   Bucket(own),
		months:  make(map[MonthKey]int),
	}
	for _, y := range b.years {
		for _, m := range y.Months {
			b.months[m.Key] = len(m.Entries)
		}
	}
	return b
}

// Len returns the number of entries.
func (b *Board) Len() int { return len(b.entries) }

// Has reports whether i is a valid entry index.
func (b *Board) Has(i int) bool { return i >= 0 && i < len(b.entries) }

// Entry returns the entry at index i. It panics when i is out of range.
func (b *Board) Entry(i int) core.Entry { return b.entries[i] }

// Entries returns a copy of the entry list in original order.
func (b *Board) Entries() []core.Entry {
	return append([]core.Entry(nil), b.entries...)
}

// Years returns the year buckets. The result is shared and must not be modified.
func (b *Board) Years() []YearBucket { return b.years }

// HasMonth reports whether any entry falls in month k.
func (b *Board) HasMonth(k MonthKey) bool {
	_, ok := b.months[k]
	return ok
}

// MonthCount returns how many entries fall in month k.
func (b *Board) MonthCount(k MonthKey) int { return b.months[k] }
