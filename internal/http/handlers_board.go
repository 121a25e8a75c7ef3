package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"workdiary/internal/board"
	"workdiary/internal/log"
	"workdiary/internal/middleware/trace"
)

// pageData is what the board templates render from.
type pageData struct {
	Title string
	View  board.View
	Links links
	// OOB marks fragments that are swapped out of band.
	OOB bool
}

type boardResponse struct {
	board.View
	Open []string `json:"open"`
	URL  string   `json:"url"`
}

// stateFromRequest decodes the board state of a full-page or JSON request.
// Invalid input never fails the request: it is logged and the initial state
// is used in its place.
func (s *Server) stateFromRequest(r *http.Request, b *board.Board) board.State {
	ctx := r.Context()
	sq, err := parseStateQuery(r.URL.Query())
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring invalid entry parameter",
			log.FieldError, err, log.FieldQuery, r.URL.RawQuery)
		sq.HasEntry = false
	}
	if len(sq.BadOpen) > 0 {
		s.logger.WarnContext(ctx, "Ignoring malformed open parameters",
			"values", sq.BadOpen, log.FieldQuery, r.URL.RawQuery)
	}
	state, err := sq.resolve(b)
	if err != nil {
		s.logger.WarnContext(ctx, "Falling back to initial selection",
			log.FieldError, err, log.FieldEntryCount, b.Len())
	}
	return state
}

func (s *Server) loadOrFail(w http.ResponseWriter, r *http.Request) (*board.Board, bool) {
	b, err := s.currentBoard(r.Context())
	if err != nil {
		s.sl.LogError(r.Context(), "Failed to load board", err, log.ComponentBoard, log.OpLoad,
			log.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
		InternalServerError("Could not load the diary. Please try again later.").Write(w)
		return nil, false
	}
	return b, true
}

// handleIndex renders the full page for the state in the URL.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	b, ok := s.loadOrFail(w, r)
	if !ok {
		return
	}

	state := s.stateFromRequest(r, b)
	body, err := s.render("index.html", pageData{
		Title: s.title,
		View:  b.View(state),
		Links: links{state: state},
	})
	if err != nil {
		s.sl.LogError(r.Context(), "Index render failed", err, log.ComponentTemplate, log.OpRender, nil)
		InternalServerError("Could not render the diary.").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleSelect selects one entry. htmx callers get the board fragments and an
// entry:focus event carrying the scroll command; everyone else is redirected
// to the page for the new state.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sq, err := parseStateQuery(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if !sq.HasEntry {
		BadRequestError("entry is required").Write(w)
		return
	}

	b, ok := s.loadOrFail(w, r)
	if !ok {
		return
	}
	state, err := sq.resolve(b)
	if err != nil {
		if errors.Is(err, errEntryOutOfRange) {
			BadRequestError(err.Error()).Write(w)
			return
		}
		InternalServerError("Could not select the entry.").Write(w)
		return
	}
	state, cmd := b.Select(state, sq.Entry)
	s.metrics.selects.Add(1)
	s.sl.LogSelection(r.Context(), sq.Entry)

	l := links{state: state}
	if !isHTMX(r) {
		http.Redirect(w, r, l.Page(sq.Entry), http.StatusSeeOther)
		return
	}

	body, err := s.render("board_swap", pageData{Title: s.title, View: b.View(state), Links: l, OOB: true})
	if err != nil {
		s.sl.LogError(r.Context(), "Board render failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithEntry(sq.Entry))
		InternalServerError("Could not render the diary.").Write(w)
		return
	}
	NewHTMXResponse().
		BodyHTML(body).
		TriggerEntryFocus(cmd).
		PushURL(stateURL("/", state)).
		Write(w)
}

// handleToggle expands or collapses one month of the navigator.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get(paramMonth))
	if raw == "" {
		BadRequestError("month is required").Write(w)
		return
	}
	key, err := board.ParseMonthKey(raw)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sq, err := parseStateQuery(q)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	b, ok := s.loadOrFail(w, r)
	if !ok {
		return
	}
	if !b.HasMonth(key) {
		BadRequestError("no entries in " + key.String()).Write(w)
		return
	}
	state, err := sq.resolve(b)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	next := board.Toggle(state, key)
	s.metrics.toggles.Add(1)
	s.sl.LogToggle(r.Context(), key.String(), next.IsExpanded(key))

	if !isHTMX(r) {
		http.Redirect(w, r, stateURL("/", next), http.StatusSeeOther)
		return
	}

	// The cards carry select links for the whole state, so they follow out of band.
	data := pageData{Title: s.title, View: b.View(next), Links: links{state: next}}
	body, err := s.render("sidebar", data)
	if err == nil {
		data.OOB = true
		var cards []byte
		cards, err = s.render("cards", data)
		body = append(body, cards...)
	}
	if err != nil {
		s.sl.LogError(r.Context(), "Sidebar render failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithMonth(key.String(), next.IsExpanded(key)))
		InternalServerError("Could not render the navigator.").Write(w)
		return
	}
	NewHTMXResponse().
		BodyHTML(body).
		PushURL(stateURL("/", next)).
		Write(w)
}

// handleBoardJSON serves the view for the URL state as JSON.
func (s *Server) handleBoardJSON(w http.ResponseWriter, r *http.Request) {
	b, err := s.currentBoard(r.Context())
	if err != nil {
		s.sl.LogError(r.Context(), "Failed to load board", err, log.ComponentBoard, log.OpLoad, nil)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load entries"})
		return
	}

	state := s.stateFromRequest(r, b)
	open := make([]string, 0, len(state.Expanded))
	for _, k := range state.ExpandedKeys() {
		open = append(open, k.String())
	}
	writeJSON(w, http.StatusOK, boardResponse{
		View: b.View(state),
		Open: open,
		URL:  stateURL("/", state),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
