package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"workdiary/internal/amqp"
	"workdiary/internal/board"
	"workdiary/internal/core"
	"workdiary/internal/log"
)

type fakeReader struct {
	entries []core.Entry
	err     error
	calls   atomic.Int64
	// gate, when set, blocks ListEntries until it is closed.
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeReader) ListEntries(ctx context.Context) ([]core.Entry, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.Entry(nil), f.entries...), nil
}

func testEntries() []core.Entry {
	return []core.Entry{
		{Title: "Kickoff", Content: "Setting goals.", Date: core.NewDate(2025, 1, 6)},
		{Title: "Planning", Content: "Roadmap draft.", Date: core.NewDate(2025, 1, 13)},
		{Title: "Review", Content: "Shipped **two** features.", Date: core.NewDate(2025, 2, 3)},
		{Title: "Wrap-up", Content: "End of year.", Date: core.NewDate(2024, 12, 2)},
	}
}

func newTestServer(t *testing.T, reader *fakeReader) *Server {
	t.Helper()
	srv := NewServer(":0", reader, Options{
		Title:   "Test Diary",
		Logger:  log.New(log.Config{Output: io.Discard}),
		Backend: "memory",
	})
	if srv.templates == nil {
		t.Fatalf("templates not parsed")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func do(t *testing.T, srv *Server, method, target string, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersBoard(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		"<title>Test Diary</title>",
		`id="entry-0" class="card selected"`,
		`id="entry-2" class="card"`,
		"February",
		"December",
		"<strong>two</strong>",
		"/static/diary.js",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Index(body, ">2025<") > strings.Index(body, ">2024<") {
		t.Errorf("years not rendered newest first")
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("missing security headers")
	}
}

func TestIndexStateFromURL(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/?entry=1&open=2025-01", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `id="entry-1" class="card selected"`) {
		t.Errorf("entry 1 not selected")
	}
	if !strings.Contains(body, `class="nav-entry selected"`) {
		t.Errorf("expanded month does not list the selected entry")
	}
}

func TestIndexFallsBackOnInvalidState(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	for _, target := range []string{"/?entry=99", "/?entry=abc", "/?entry=-3", "/?open=bogus", "/?open=2030-01"} {
		t.Run(target, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, target, false)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `id="entry-0" class="card selected"`) {
				t.Errorf("expected the initial selection")
			}
		})
	}
}

func TestIndexUnknownPath(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})
	if rr := do(t, srv, http.MethodGet, "/nope", false); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSelectEmitsFocusEvent(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/ui/select?entry=2", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var events map[string]board.ScrollCommand
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger-After-Settle")), &events); err != nil {
		t.Fatalf("decode trigger header: %v", err)
	}
	want := board.ScrollCommand{Index: 2, Anchor: "entry-2", Block: "center", Behavior: "smooth"}
	if diff := cmp.Diff(want, events[EventEntryFocus]); diff != "" {
		t.Errorf("scroll command mismatch (-want +got):\n%s", diff)
	}
	if got := rr.Header().Get("HX-Push-Url"); got != "/?entry=2" {
		t.Errorf("HX-Push-Url = %q", got)
	}

	body := rr.Body.String()
	if strings.Count(body, `hx-swap-oob="true"`) != 2 {
		t.Errorf("expected sidebar and cards swapped out of band")
	}
	if !strings.Contains(body, `id="entry-2" class="card selected"`) {
		t.Errorf("entry 2 not selected in fragment")
	}
	if strings.Contains(body, `id="entry-0" class="card selected"`) {
		t.Errorf("previous selection still emphasised")
	}
}

func TestSelectKeepsExpandedMonths(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/ui/select?entry=3&open=2025-01&open=2025-02", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("HX-Push-Url"); got != "/?entry=3&open=2025-02&open=2025-01" {
		t.Errorf("HX-Push-Url = %q", got)
	}
}

func TestSelectRejectsInvalidEntry(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	tests := []struct {
		name   string
		target string
	}{
		{"out of range", "/ui/select?entry=4"},
		{"far out of range", "/ui/select?entry=99"},
		{"negative", "/ui/select?entry=-1"},
		{"not a number", "/ui/select?entry=two"},
		{"missing", "/ui/select"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, true)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if rr.Header().Get("HX-Trigger-After-Settle") != "" {
				t.Errorf("rejected select must not emit a focus event")
			}
		})
	}
}

func TestSelectWithoutHTMXRedirects(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/ui/select?entry=2", false)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "/?entry=2#entry-2" {
		t.Errorf("Location = %q", got)
	}
}

func TestToggleRoundTrip(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/ui/toggle?month=2025-01&entry=1", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("HX-Push-Url"); got != "/?entry=1&open=2025-01" {
		t.Errorf("HX-Push-Url after expand = %q", got)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(strings.TrimSpace(body), `<nav id="sidebar"`) {
		t.Errorf("response should start with the sidebar")
	}
	if !strings.Contains(body, `aria-expanded="true"`) || !strings.Contains(body, `class="nav-entry selected"`) {
		t.Errorf("expanded month not rendered with its entries")
	}

	rr = do(t, srv, http.MethodGet, "/ui/toggle?month=2025-01&entry=1&open=2025-01", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := rr.Header().Get("HX-Push-Url"); got != "/?entry=1" {
		t.Errorf("HX-Push-Url after collapse = %q", got)
	}
	if strings.Contains(rr.Body.String(), `aria-expanded="true"`) {
		t.Errorf("month still expanded after second toggle")
	}
}

func TestToggleRejectsBadMonth(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	for _, target := range []string{
		"/ui/toggle",
		"/ui/toggle?month=2025-13",
		"/ui/toggle?month=january",
		"/ui/toggle?month=2030-01",
		"/ui/toggle?month=2025-01&entry=x",
	} {
		t.Run(target, func(t *testing.T) {
			if rr := do(t, srv, http.MethodGet, target, true); rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestToggleWithoutHTMXRedirects(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/ui/toggle?month=2024-12", false)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "/?entry=0&open=2024-12" {
		t.Errorf("Location = %q", got)
	}
}

func TestBoardJSON(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/api/board?entry=2&open=2025-02&open=bad", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var got struct {
		Count    int      `json:"count"`
		Selected int      `json:"selected"`
		Open     []string `json:"open"`
		URL      string   `json:"url"`
		Years    []struct {
			Year   int `json:"year"`
			Months []struct {
				Key      string `json:"key"`
				Expanded bool   `json:"expanded"`
			} `json:"months"`
		} `json:"years"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 4 || got.Selected != 2 {
		t.Errorf("count=%d selected=%d", got.Count, got.Selected)
	}
	if diff := cmp.Diff([]string{"2025-02"}, got.Open); diff != "" {
		t.Errorf("open mismatch (-want +got):\n%s", diff)
	}
	if got.URL != "/?entry=2&open=2025-02" {
		t.Errorf("url = %q", got.URL)
	}
	if len(got.Years) != 2 || got.Years[0].Year != 2025 || !got.Years[0].Months[0].Expanded {
		t.Errorf("unexpected years: %+v", got.Years)
	}
}

func TestBoardIsCachedAndInvalidated(t *testing.T) {
	reader := &fakeReader{entries: testEntries()}
	srv := newTestServer(t, reader)

	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/", false); rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
	}
	if n := reader.calls.Load(); n != 1 {
		t.Fatalf("expected one load, got %d", n)
	}

	msg := amqp.NewEntriesChangedMessage(5, "sheets")
	if err := srv.HandleEntriesChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleEntriesChanged: %v", err)
	}
	reader.entries = append(reader.entries, core.Entry{Title: "Fresh", Date: core.NewDate(2025, 3, 3)})

	rr := do(t, srv, http.MethodGet, "/", false)
	if n := reader.calls.Load(); n != 2 {
		t.Fatalf("expected a reload after invalidation, got %d loads", n)
	}
	if !strings.Contains(rr.Body.String(), "Fresh") {
		t.Errorf("reloaded board missing new entry")
	}
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	reader := &fakeReader{
		entries: testEntries(),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	srv := newTestServer(t, reader)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := srv.currentBoard(context.Background())
			if err == nil && b.Len() != 4 {
				err = errors.New("wrong board")
			}
			errs <- err
		}()
	}

	<-reader.started
	close(reader.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("currentBoard: %v", err)
		}
	}
	if n := reader.calls.Load(); n != 1 {
		t.Fatalf("expected one shared load, got %d", n)
	}
}

func TestLoadFailure(t *testing.T) {
	srv := newTestServer(t, &fakeReader{err: errors.New("backend down")})

	if rr := do(t, srv, http.MethodGet, "/", false); rr.Code != http.StatusInternalServerError {
		t.Errorf("index: expected 500, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/ui/select?entry=0", true); rr.Code != http.StatusInternalServerError {
		t.Errorf("select: expected 500, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", false); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz: expected 503, got %d", rr.Code)
	}
	// Failed loads are not cached.
	before := srv.metrics.boardLoads.Load()
	do(t, srv, http.MethodGet, "/", false)
	if srv.metrics.boardLoads.Load() != before+1 {
		t.Errorf("expected a retry after a failed load")
	}
}

func TestInvalidEntriesAreRejected(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: []core.Entry{{Title: "", Date: core.NewDate(2025, 1, 1)}}})
	if rr := do(t, srv, http.MethodGet, "/", false); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for invalid entries, got %d", rr.Code)
	}
}

func TestEmptyBoard(t *testing.T) {
	srv := newTestServer(t, &fakeReader{})

	rr := do(t, srv, http.MethodGet, "/", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No entries yet.") {
		t.Errorf("empty board message missing")
	}
	if rr := do(t, srv, http.MethodGet, "/ui/select?entry=0", true); rr.Code != http.StatusBadRequest {
		t.Errorf("select on empty board: expected 400, got %d", rr.Code)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/healthz", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	var health map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&health); err != nil || health["status"] != "ok" {
		t.Fatalf("healthz body: %v %v", health, err)
	}

	rr = do(t, srv, http.MethodGet, "/readyz", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}

	do(t, srv, http.MethodGet, "/ui/select?entry=1", true)
	rr = do(t, srv, http.MethodGet, "/metrics", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"board_loads_total 1",
		"board_selects_total 1",
		`cache_entries{type="board"} 1`,
		"http_requests_total",
		"uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodPost, "/ui/select?entry=1", true)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow = %q", got)
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})

	rr := do(t, srv, http.MethodGet, "/static/diary.js", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "entry:focus") {
		t.Errorf("focus script not served")
	}
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestProbeBlocked(t *testing.T) {
	srv := newTestServer(t, &fakeReader{entries: testEntries()})
	if rr := do(t, srv, http.MethodGet, "/.env", false); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
