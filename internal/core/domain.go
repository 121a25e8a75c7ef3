package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	// Entry is one diary record. Entries are loaded once and never mutated.
	Entry struct {
		Title   string
		Content string
		Date    Date
	}
)

var (
	ErrZeroDate   = errors.New("date cannot be zero")
	ErrEmptyTitle = errors.New("empty title")
	ErrLongTitle  = errors.New("title too long (max 200 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthStart truncates the date to the first day of its calendar month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseISODate parses a YYYY-MM-DD string into a Date.
func ParseISODate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (e Entry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return ErrLongTitle
	}
	return nil
}

// ValidateAll validates every entry and reports the first failure with its position.
func ValidateAll(entries []Entry) error {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return &EntryError{Index: i, Err: err}
		}
	}
	return nil
}

// EntryError ties a validation failure to a position in an entry list.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return "entry " + strconv.Itoa(e.Index) + ": " + e.Err.Error()
}

func (e *EntryError) Unwrap() error { return e.Err }
