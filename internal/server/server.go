package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/hanpama/rendergraph/internal/compiler"
	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/eventbus"
	"github.com/hanpama/rendergraph/internal/events"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/language"
	"github.com/hanpama/rendergraph/internal/reqid"
)

// Handler is an http.Handler that compiles graph descriptions posted to
// /compile and checks those posted to /check.
type Handler struct {
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// Library provides the packages a posted description may import.
	Library ir.Discovery

	// Logger is attached to the context of every compilation.
	Logger *slog.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithLibrary(d ir.Discovery) Option { return func(o *Options) { o.Library = d } }
func WithLogger(l *slog.Logger) Option  { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// DefaultEntry names the posted package when the request has no entry parameter.
const DefaultEntry = "main"

func New(opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	if h.opt.Logger != nil {
		ctx = ctxlog.WithLogger(ctx, h.opt.Logger)
	}

	ctx, rid := reqid.FromHeader(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, strconv.FormatInt(rid, 10))
	status := http.StatusOK
	violations := 0
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{RequestID: rid, Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			RequestID:  rid,
			Request:    r,
			Status:     status,
			Violations: violations,
			Duration:   time.Since(start),
		})
		ctxlog.FromContext(ctx).Debug("served request",
			"request_id", rid,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	var checkOnly bool
	switch r.URL.Path {
	case "/compile":
	case "/check":
		checkOnly = true
	default:
		status = http.StatusNotFound
		writeJSON(w, status, errorResponse{Error: "not found"}, h.opt.Pretty)
		return
	}
	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse{Error: "method not allowed"}, h.opt.Pretty)
		return
	}

	body, err := readBody(r, h.opt.MaxBodyBytes)
	if err != nil {
		status = http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse{Error: err.Error()}, h.opt.Pretty)
		return
	}

	entry := r.URL.Query().Get("entry")
	if entry == "" {
		entry = DefaultEntry
	}
	disc := newOverlay(h.opt.Library, entry, body)

	var result any
	if checkOnly {
		var g *ir.Graph
		g, err = compiler.Check(ctx, disc, entry)
		if err == nil {
			result = checkResponse{Entry: entry, Operations: len(g.Operations), Connections: len(g.Connections)}
		}
	} else {
		result, err = compiler.Compile(ctx, disc, entry)
	}

	var verr ir.ValidationError
	var perr *language.ParseError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		violations = len(verr)
		result = errorResponse{Error: "graph description is invalid", Violations: verr}
	case errors.As(err, &perr):
		status = http.StatusBadRequest
		result = errorResponse{Error: "graph description does not parse", Diagnostics: toDiagnostics(perr)}
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		result = errorResponse{Error: err.Error()}
	default:
		status = http.StatusInternalServerError
		result = errorResponse{Error: err.Error()}
	}
	writeJSON(w, status, result, h.opt.Pretty)
}

// ------------------ Request parsing ------------------

var errBodyTooLarge = errors.New("body too large")

func readBody(r *http.Request, maxBody int64) ([]byte, error) {
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, errBodyTooLarge
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	return body, nil
}

// ------------------ Response formatting ------------------

type diagnostic struct {
	Summary string `json:"summary"`
	Detail  string `json:"detail,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

type errorResponse struct {
	Error       string             `json:"error"`
	Violations  ir.ValidationError `json:"violations,omitempty"`
	Diagnostics []diagnostic       `json:"diagnostics,omitempty"`
}

type checkResponse struct {
	Entry       string `json:"entry"`
	Operations  int    `json:"operations"`
	Connections int    `json:"connections"`
}

func toDiagnostics(perr *language.ParseError) []diagnostic {
	out := make([]diagnostic, 0, len(perr.Diagnostics))
	for _, d := range perr.Diagnostics {
		dj := diagnostic{Summary: d.Summary, Detail: d.Detail}
		if d.Subject != nil {
			dj.File, dj.Line, dj.Column = d.Subject.Filename, d.Subject.Start.Line, d.Subject.Start.Column
		}
		out = append(out, dj)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

// setCORSHeaders answers cross-origin requests from AllowedOrigins. A "*"
// entry admits every origin without echoing it back.
func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	h := w.Header()
	switch {
	case slices.Contains(opts.AllowedOrigins, "*"):
		h.Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(opts.AllowedOrigins, origin):
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	default:
		return
	}
	h.Set("Access-Control-Expose-Headers", reqid.Header)
	if r.Method != http.MethodOptions {
		return
	}
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		h.Set("Access-Control-Allow-Headers", requested)
	}
}
