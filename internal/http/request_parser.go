// Board state is mapped to and from URL query strings. The state lives in the
// URL so that every page, partial and JSON response can be re-derived from the
// entries and the request alone.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"workdiary/internal/board"
)

// Query parameter names.
const (
	paramEntry = "entry"
	paramOpen  = "open"
	paramMonth = "month"
)

var (
	errBadEntry        = errors.New("entry must be a non-negative integer")
	errEntryOutOfRange = errors.New("entry out of range")
)

// stateQuery is the raw board state carried by a request.
type stateQuery struct {
	Entry    int
	HasEntry bool
	Open     []board.MonthKey
	BadOpen  []string
}

// parseStateQuery reads entry and open parameters. A malformed entry is an
// error; malformed open values are collected in BadOpen and otherwise ignored.
func parseStateQuery(q url.Values) (stateQuery, error) {
	var sq stateQuery

	for _, raw := range q[paramOpen] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			k, err := board.ParseMonthKey(part)
			if err != nil {
				sq.BadOpen = append(sq.BadOpen, part)
				continue
			}
			sq.Open = append(sq.Open, k)
		}
	}

	if raw := strings.TrimSpace(q.Get(paramEntry)); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil || i < 0 {
			return sq, fmt.Errorf("%w: %q", errBadEntry, raw)
		}
		sq.Entry = i
		sq.HasEntry = true
	}

	return sq, nil
}

// resolve builds the board state for the query. Months not on the board are
// dropped so URLs stay canonical. An out-of-range entry leaves the initial
// selection in place and is reported as errEntryOutOfRange.
func (sq stateQuery) resolve(b *board.Board) (board.State, error) {
	s := b.InitialState()
	for _, k := range sq.Open {
		if b.HasMonth(k) {
			s.Expanded[k] = true
		}
	}
	if !sq.HasEntry {
		return s, nil
	}
	if !b.Has(sq.Entry) {
		return s, fmt.Errorf("%w: %d not in [0,%d)", errEntryOutOfRange, sq.Entry, b.Len())
	}
	s, _ = b.Select(s, sq.Entry)
	return s, nil
}

// encodeState renders s as query values: the selected entry and the expanded
// months, newest first.
func encodeState(s board.State) url.Values {
	v := url.Values{}
	if s.Selected != board.NoSelection {
		v.Set(paramEntry, strconv.Itoa(s.Selected))
	}
	for _, k := range s.ExpandedKeys() {
		v.Add(paramOpen, k.String())
	}
	return v
}

// stateURL is the canonical page URL for s under path.
func stateURL(path string, s board.State) string {
	q := encodeState(s).Encode()
	if q == "" {
		return path
	}
	return path + "?" + q
}

// links builds the navigation URLs the templates need for one state.
type links struct {
	state board.State
}

// Page is the full-page URL selecting entry i, with a fragment for browsers
// without script.
func (l links) Page(i int) string {
	s := l.state.Clone()
	s.Selected = i
	return stateURL("/", s) + "#" + board.AnchorID(i)
}

// Select is the partial URL selecting entry i.
func (l links) Select(i int) string {
	s := l.state.Clone()
	s.Selected = i
	return stateURL("/ui/select", s)
}

// TogglePage is the full-page URL with month key flipped.
func (l links) TogglePage(key string) string {
	k, err := board.ParseMonthKey(key)
	if err != nil {
		return "/"
	}
	return stateURL("/", board.Toggle(l.state, k))
}

// Toggle is the partial URL flipping month key.
func (l links) Toggle(key string) string {
	v := encodeState(l.state)
	v.Set(paramMonth, key)
	return "/ui/toggle?" + v.Encode()
}

// RequireMethod returns an error response when r's method is not allowed.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
