package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plmerge/internal/formatter"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/desertthunder/plmerge/internal/tasks"
)

// History reads recorded generations. [repositories.GenerationRepository] implements it.
type History interface {
	List(criteria map[string]any) ([]*models.GenerationJob, error)
	Latest(requestID string) (*models.GenerationJob, error)
}

// Publisher uploads a finished media file. [storage.Publisher] implements it.
type Publisher interface {
	Publish(ctx context.Context, res models.GenerationResult) (string, error)
}

// GenerationOptions wires the collaborators of a [GenerationHandler]. Only Downloader is required.
type GenerationOptions struct {
	Downloader *tasks.MediaFileDownloader
	BaseDir    string
	History    History
	Recorder   tasks.Recorder
	Publisher  Publisher
	Logger     *log.Logger
}

// GenerationHandler serves the generation endpoints for one downloader.
type GenerationHandler struct {
	opts GenerationOptions
	mux  *http.ServeMux

	mu      sync.Mutex
	current *tasks.Generation
	watches sync.WaitGroup
}

// NewGenerationHandler creates a handler; see the package documentation for its routes.
func NewGenerationHandler(opts GenerationOptions) *GenerationHandler {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	h := &GenerationHandler{opts: opts, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /generations", h.start)
	h.mux.HandleFunc("GET /generations", h.list)
	h.mux.HandleFunc("GET /generations/current", h.status)
	h.mux.HandleFunc("DELETE /generations/current", h.cancel)
	h.mux.HandleFunc("GET /generations/{id}", h.latest)
	h.mux.HandleFunc("GET /health", h.health)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *GenerationHandler) Routes() []string {
	return []string{"/generations", "/generations/", "/health"}
}

func (h *GenerationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Wait blocks until every accepted generation has been recorded.
func (h *GenerationHandler) Wait() {
	h.watches.Wait()
}

type startRequest struct {
	ID   string   `json:"id"`
	URLs []string `json:"urls"`
}

type startResponse struct {
	ID        string    `json:"id"`
	Sources   int       `json:"sources"`
	StartedAt time.Time `json:"started_at"`
}

type currentResponse struct {
	InProgress bool       `json:"in_progress"`
	ID         string     `json:"id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *GenerationHandler) start(w http.ResponseWriter, r *http.Request) {
	if h.opts.Downloader == nil {
		writeError(w, http.StatusServiceUnavailable, shared.ErrServiceUnavailable)
		return
	}

	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.Join(shared.ErrInvalidInput, err))
		return
	}
	if body.ID == "" {
		body.ID = shared.GenerateID()
	}

	req := models.NewGenerationRequest(body.ID, body.URLs)
	gen, err := h.opts.Downloader.Generate(r.Context(), req, h.opts.BaseDir, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	job := h.recorder().Started(req)

	h.mu.Lock()
	h.current = gen
	h.mu.Unlock()

	h.watches.Add(1)
	go h.watch(gen, job)

	h.opts.Logger.Info("generation accepted", "id", req.ID, "sources", len(req.Sources))
	writeJSON(w, http.StatusAccepted, startResponse{ID: gen.ID(), Sources: len(req.Sources), StartedAt: gen.StartedAt()})
}

// watch records the outcome of gen and publishes its media file.
func (h *GenerationHandler) watch(gen *tasks.Generation, job *models.GenerationJob) {
	defer h.watches.Done()

	res, err := gen.Wait(context.Background())

	h.mu.Lock()
	if h.current == gen {
		h.current = nil
	}
	h.mu.Unlock()

	if errors.Is(err, shared.ErrCancelled) {
		h.recorder().Cancelled(job)
		return
	}
	h.recorder().Finished(job, res)

	if h.opts.Publisher == nil || !res.Succeeded() || res.Path == "" {
		return
	}
	if _, err := h.opts.Publisher.Publish(context.Background(), res); err != nil {
		h.opts.Logger.Error("failed to publish media file", "id", res.ID, "error", err)
	}
}

func (h *GenerationHandler) status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	gen := h.current
	h.mu.Unlock()

	if gen == nil || h.opts.Downloader == nil || !h.opts.Downloader.InProgress() {
		writeJSON(w, http.StatusOK, currentResponse{})
		return
	}
	started := gen.StartedAt()
	writeJSON(w, http.StatusOK, currentResponse{InProgress: true, ID: gen.ID(), StartedAt: &started})
}

func (h *GenerationHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if h.opts.Downloader == nil {
		writeError(w, http.StatusServiceUnavailable, shared.ErrServiceUnavailable)
		return
	}
	if err := h.opts.Downloader.Cancel(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GenerationHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.opts.History == nil {
		writeError(w, http.StatusServiceUnavailable, shared.ErrServiceUnavailable)
		return
	}

	criteria := map[string]any{}
	q := r.URL.Query()
	if v := q.Get("request_id"); v != "" {
		criteria["request_id"] = v
	}
	if v := q.Get("status"); v != "" {
		criteria["status"] = v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, errors.Join(shared.ErrInvalidArgument, errors.New("limit must be a non-negative integer")))
			return
		}
		criteria["limit"] = limit
	}

	jobs, err := h.opts.History.List(criteria)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, formatter.NewJobViews(jobs))
}

func (h *GenerationHandler) latest(w http.ResponseWriter, r *http.Request) {
	if h.opts.History == nil {
		writeError(w, http.StatusServiceUnavailable, shared.ErrServiceUnavailable)
		return
	}

	job, err := h.opts.History.Latest(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, formatter.NewJobView(job))
}

func (h *GenerationHandler) health(w http.ResponseWriter, r *http.Request) {
	busy := h.opts.Downloader != nil && h.opts.Downloader.InProgress()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "in_progress": busy})
}

func (h *GenerationHandler) recorder() tasks.Recorder {
	if h.opts.Recorder == nil {
		return nopRecorder{}
	}
	return h.opts.Recorder
}

type nopRecorder struct{}

func (nopRecorder) Started(models.GenerationRequest) *models.GenerationJob { return nil }
func (nopRecorder) Finished(*models.GenerationJob, models.GenerationResult) {}
func (nopRecorder) Cancelled(*models.GenerationJob) {}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidRequest), errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrGenerationNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrDownloaderClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
