package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/middleware"
	"github.com/samobrien878/Williams-Data-Pipline/internal/services"
	"github.com/samobrien878/Williams-Data-Pipline/internal/store"
	api "github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/api/v1"
)

// CSVFileName is the download name of /api/summaries.csv.
const CSVFileName = "daily_summaries.csv"

// SummaryHandler serves daily summaries and subject ids
type SummaryHandler struct {
	service      SummaryServiceInterface
	validator    *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	minRatID     int
	maxRatID     int
	logger       *slog.Logger
}

// NewSummaryHandler creates a summary handler. Subject ids in queries must
// lie in [minRatID, maxRatID].
func NewSummaryHandler(service SummaryServiceInterface, minRatID, maxRatID int, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SummaryHandler {
	return &SummaryHandler{
		service:      service,
		validator:    middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler: errorHandler,
		minRatID:     minRatID,
		maxRatID:     maxRatID,
		logger:       logger.With(slog.String("component", "summary_handler")),
	}
}

// Routes returns the summary routes, to be mounted under /api
func (h *SummaryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/summaries", h.List)
	r.Get("/summaries.csv", h.ExportCSV)
	r.Get("/subjects", h.Subjects)
	return r
}

// List handles GET /api/summaries
func (h *SummaryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	rows, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.SummariesResponse{Count: len(rows), Summaries: rows})
}

// ExportCSV handles GET /api/summaries.csv
func (h *SummaryHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filter(w, r)
	if !ok {
		return
	}

	cw := &deferredWriter{w: w, onFirstWrite: func() {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+CSVFileName+`"`)
	}}

	n, err := h.service.ExportCSV(r.Context(), cw, filter)
	if err != nil {
		if cw.started {
			// Headers are gone; all that is left is to log.
			h.logger.ErrorContext(r.Context(), "csv export aborted", slog.String("error", err.Error()))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "csv exported", slog.Int("rows", n))
}

// Subjects handles GET /api/subjects
func (h *SummaryHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Subjects(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.SubjectsResponse{Subjects: ids})
}

func (h *SummaryHandler) filter(w http.ResponseWriter, r *http.Request) (store.SummaryFilter, bool) {
	rats, ok := h.validator.IntList(w, r, "rat", h.minRatID, h.maxRatID)
	if !ok {
		return store.SummaryFilter{}, false
	}
	stages, ok := h.validator.IntList(w, r, "stage", 0, 3)
	if !ok {
		return store.SummaryFilter{}, false
	}
	exclude, ok := h.validator.Bool(w, r, "exclude_stage0", false)
	if !ok {
		return store.SummaryFilter{}, false
	}

	filter, err := services.NewFilter(rats, stages, exclude)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return store.SummaryFilter{}, false
	}
	return filter, true
}

// deferredWriter sets the download headers just before the first byte, so a
// failure before any output can still be rendered as a problem response.
type deferredWriter struct {
	w            http.ResponseWriter
	onFirstWrite func()
	started      bool
}

func (d *deferredWriter) Write(p []byte) (int, error) {
	if !d.started {
		d.started = true
		d.onFirstWrite()
	}
	return d.w.Write(p)
}
