// Package http serves the diary board: full pages, htmx fragments for
// selection and month toggling, a JSON view and operational endpoints.
package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"workdiary/internal/amqp"
	"workdiary/internal/board"
	"workdiary/internal/cache"
	"workdiary/internal/core"
	"workdiary/internal/log"
	"workdiary/internal/middleware/ratelimit"
	"workdiary/internal/middleware/security"
	"workdiary/internal/middleware/trace"
	"workdiary/internal/render"
	"workdiary/internal/source"
	appweb "workdiary/web"
)

const (
	defaultTitle    = "Work Diary"
	defaultCacheTTL = 5 * time.Minute
	loadTimeout     = 10 * time.Second
	cleanupInterval = 10 * time.Minute
	markdownEntries = 256
)

// Options tunes a Server. Zero values select defaults.
type Options struct {
	Title     string
	CacheTTL  time.Duration
	Logger    *log.Logger
	Backend   string
	RateLimit ratelimit.Config
}

type appMetrics struct {
	started       time.Time
	boardLoads    atomic.Int64
	loadErrors    atomic.Int64
	selects       atomic.Int64
	toggles       atomic.Int64
	invalidations atomic.Int64
}

// Server renders the diary board over HTTP.
type Server struct {
	http.Server

	title     string
	reader    source.EntryReader
	backend   string
	logger    *log.Logger
	sl        *log.StructuredLogger
	templates *template.Template

	boards     *cache.LRUCache[*board.Board]
	loads      singleflight.Group
	generation atomic.Int64
	markdown   *render.Markdown
	caches     *cache.Manager

	detector    *security.Detector
	headers     *security.HeadersMiddleware
	trace       *trace.Middleware
	rateLimiter *ratelimit.Limiter

	metrics      appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server that reads entries from reader.
func NewServer(addr string, reader source.EntryReader, opts Options) *Server {
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		title:       opts.Title,
		reader:      reader,
		backend:     opts.Backend,
		logger:      logger,
		sl:          log.NewStructuredLogger(logger),
		boards:      cache.NewLRUCache[*board.Board](4, opts.CacheTTL),
		markdown:    render.NewMarkdown(markdownEntries, opts.CacheTTL),
		caches:      cache.NewManager(),
		detector:    security.NewDetector(),
		headers:     security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
	}
	s.metrics.started = time.Now()
	s.trace = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.caches.Register("board", s.boards)
	s.caches.Register("markdown", s.markdown.Cache())
	s.caches.StartCleanup(cleanupInterval)

	t, err := template.New("").Funcs(template.FuncMap{
		"markdown": s.markdown.HTML,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)

	mux.HandleFunc("/", getOnly(s.handleIndex))
	mux.HandleFunc("/healthz", getOnly(s.handleHealth))
	mux.HandleFunc("/readyz", getOnly(s.handleReady))
	mux.HandleFunc("/metrics", getOnly(s.handleMetrics))
	mux.Handle("/ui/select", limited(getOnly(s.handleSelect)))
	mux.Handle("/ui/toggle", limited(getOnly(s.handleToggle)))
	mux.Handle("/api/board", limited(getOnly(s.handleBoardJSON)))

	var handler http.Handler = mux
	handler = s.trace.Middleware(handler)
	handler = s.headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	s.Handler = handler

	return s
}

// getOnly rejects every method but GET and HEAD.
func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
			resp.Write(w)
			return
		}
		h(w, r)
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, slow down.").Write(w)
}

// currentBoard returns the cached board, loading it through the reader on a miss.
// Concurrent misses share one load.
func (s *Server) currentBoard(ctx context.Context) (*board.Board, error) {
	gen := s.generation.Load()
	key := "board:" + strconv.FormatInt(gen, 10)
	if b, ok := s.boards.Get(key); ok {
		return b, nil
	}

	v, err, _ := s.loads.Do(key, func() (interface{}, error) {
		b, err := s.loadBoard(ctx)
		if err != nil {
			return nil, err
		}
		// An invalidation during the load makes this result stale.
		if s.generation.Load() == gen {
			s.boards.Set(key, b)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*board.Board), nil
}

func (s *Server) loadBoard(ctx context.Context) (*board.Board, error) {
	// The load is shared between callers; one client going away must not cancel it.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	start := time.Now()
	s.metrics.boardLoads.Add(1)
	entries, err := s.reader.ListEntries(cctx)
	if err != nil {
		s.metrics.loadErrors.Add(1)
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if err := core.ValidateAll(entries); err != nil {
		s.metrics.loadErrors.Add(1)
		return nil, fmt.Errorf("validate entries: %w", err)
	}

	b := board.New(entries)
	s.logger.InfoContext(ctx, "Board loaded",
		log.FieldOperation, log.OpLoad,
		log.FieldEntryCount, b.Len(),
		log.FieldBackend, s.backend,
		log.FieldDuration, time.Since(start).Milliseconds())
	return b, nil
}

// Invalidate drops the cached board; the next request reloads it.
func (s *Server) Invalidate() {
	s.generation.Add(1)
	s.boards.Purge()
	s.metrics.invalidations.Add(1)
}

// HandleEntriesChanged reacts to an entries.changed message by invalidating
// the board cache.
func (s *Server) HandleEntriesChanged(ctx context.Context, msg *amqp.EntriesChangedMessage) error {
	s.Invalidate()
	s.logger.WithComponent(log.ComponentAMQP).InfoContext(ctx, "Board cache invalidated",
		log.FieldEntryCount, msg.Count,
		log.FieldSource, msg.Source)
	return nil
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes the named template into a buffer so a failed render never
// leaves a half-written response.
func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, fmt.Errorf("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
