// Package web serves the reference-value editor: the HTML page and table
// fragment, the JSON lookup and edit endpoints, and the spreadsheet upload.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"qcref/internal/core"
	"qcref/pkg/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// DefaultMaxUploadBytes bounds the multipart body of a seed upload.
const DefaultMaxUploadBytes int64 = 32 << 20

// SeedTokenHeader carries the shared seed token.
const SeedTokenHeader = "X-Seed-Token"

// Handler routes HTTP requests to the service.
type Handler struct {
	svc       *core.Service
	logger    *zap.Logger
	metrics   http.Handler
	maxUpload int64
	tmpl      *template.Template
	router    chi.Router
}

// Option customises a Handler.
type Option func(*Handler)

// WithLogger sets the access and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

var funcs = template.FuncMap{
	"fmtFloat": func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'g', -1, 64)
	},
	"deref": func(v *int64) int64 { return *v },
}

// NewHandler builds the router.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		logger:    zap.NewNop(),
		maxUpload: DefaultMaxUploadBytes,
		tmpl:      template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")),
	}
	for _, opt := range opts {
		opt(h)
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleIndex)
	r.Get("/programs", h.handlePrograms)
	r.Get("/batches", h.handleBatches)
	r.Get("/table", h.handleTable)
	r.Post("/update", h.handleUpdate)
	r.Post("/seed-spreadsheet", h.handleSeed)
	r.Get("/seed-uploads", h.handleUploads)
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

type indexPage struct {
	Programs        []string
	Batches         []int64
	Records         []domain.Record
	SelectedProgram string
	SelectedBatch   *int64
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	program := r.URL.Query().Get("program")
	batch, err := optionalBatch(r.URL.Query().Get("batch"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := indexPage{SelectedProgram: program, SelectedBatch: batch}
	if page.Programs, err = h.svc.ListPrograms(ctx); err != nil {
		h.respondError(w, r, err)
		return
	}
	if program != "" {
		if page.Batches, err = h.svc.ListBatches(ctx, program); err != nil {
			h.respondError(w, r, err)
			return
		}
		if batch != nil {
			if page.Records, err = h.svc.ListRecords(ctx, program, *batch); err != nil {
				h.respondError(w, r, err)
				return
			}
		}
	}
	h.render(w, r, "index.html", page)
}

func (h *Handler) handlePrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.svc.ListPrograms(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (h *Handler) handleBatches(w http.ResponseWriter, r *http.Request) {
	program := r.URL.Query().Get("program")
	if program == "" {
		writeError(w, http.StatusBadRequest, "program is required")
		return
	}
	batches, err := h.svc.ListBatches(r.Context(), program)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	program := r.URL.Query().Get("program")
	batch, err := optionalBatch(r.URL.Query().Get("batch"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if program == "" || batch == nil {
		writeError(w, http.StatusBadRequest, "program and batch are required")
		return
	}
	records, err := h.svc.ListRecords(r.Context(), program, *batch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.render(w, r, "table.html", records)
}

type updateRequest struct {
	Changes []domain.EditRequest `json:"changes"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	updated, err := h.svc.ApplyChanges(r.Context(), req.Changes)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *Handler) handleSeed(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	upload := domain.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	processed, err := h.svc.SeedFromSpreadsheet(r.Context(), upload, r.Header.Get(SeedTokenHeader))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func (h *Handler) handleUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.svc.ListUploads(r.Context(), r.Header.Get(SeedTokenHeader))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf strings.Builder
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, buf.String())
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var bad domain.BadInputError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.As(err, &bad):
		payload := map[string]any{"error": bad.Error()}
		if len(bad.Columns) > 0 {
			payload["columns"] = bad.Columns
		}
		writeJSON(w, http.StatusBadRequest, payload)
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func optionalBatch(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("batch must be an integer")
	}
	return &n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
