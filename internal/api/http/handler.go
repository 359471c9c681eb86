package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veranemoloko/dubbing-sync/internal/client"
	"github.com/veranemoloko/dubbing-sync/internal/domain"
	"github.com/veranemoloko/dubbing-sync/internal/engine"
	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
)

const maxUploadMemory = 32 << 20

// TaskServiceI defines the task operations exposed over HTTP.
type TaskServiceI interface {
	Watch(taskID string) (*engine.Handle, error)
	Release(h *engine.Handle)
	Refresh(ctx context.Context, h *engine.Handle) (engine.Observation, error)
	View(ctx context.Context, taskID string) (engine.Observation, error)
	Create(ctx context.Context, req domain.CreateTaskRequest, filename string, video io.Reader) (*domain.Task, error)
	Delete(ctx context.Context, taskID string) error
	List(ctx context.Context, opts client.ListOptions) (*client.TaskPage, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
	Stats(ctx context.Context) (*domain.SystemStats, error)
	ResolveDownload(ctx context.Context, taskID string) (*domain.DownloadGrant, error)
	SaveArtifacts(ctx context.Context, taskID string) ([]domain.SavedArtifact, error)
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	taskService TaskServiceI
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the provided service and logger.
func NewTaskHandler(taskService TaskServiceI, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

type grantResponse struct {
	TaskID      string    `json:"task_id"`
	DownloadURL string    `json:"download_url"`
	SubtitleURL string    `json:"subtitle_url,omitempty"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type listResponse struct {
	Items      []TaskView `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// CreateTask handles POST /tasks with a multipart body carrying the video.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	req := domain.CreateTaskRequest{
		SourceLanguage: r.FormValue("source_language"),
		TargetLanguage: r.FormValue("target_language"),
		Title:          r.FormValue("title"),
		SubtitleMode:   r.FormValue("subtitle_mode"),
	}

	task, err := h.taskService.Create(r.Context(), req, hdr.Filename, file)
	if err != nil {
		h.fail(w, "failed to create task", "", err)
		return
	}

	writeJSON(w, http.StatusCreated, NewTaskView(engine.Observation{TaskID: task.ID, Task: task}))
}

// ListTasks handles GET /tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := client.ListOptions{Status: q.Get("status")}

	var err error
	if opts.Page, err = optionalInt(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if opts.PageSize, err = optionalInt(q.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_size")
		return
	}

	page, err := h.taskService.List(r.Context(), opts)
	if err != nil {
		h.fail(w, "failed to list tasks", "", err)
		return
	}

	resp := listResponse{
		Items:      make([]TaskView, 0, len(page.Items)),
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
	for _, t := range page.Items {
		resp.Items = append(resp.Items, NewTaskView(engine.Observation{TaskID: t.ID, Task: t}))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTask handles GET /tasks/{taskID}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	obs, err := h.taskService.View(r.Context(), taskID)
	if err != nil {
		h.fail(w, "failed to get task", taskID, err)
		return
	}
	if obs.Task == nil && obs.Err != nil {
		h.fail(w, "failed to get task", taskID, obs.Err)
		return
	}

	writeJSON(w, http.StatusOK, NewTaskView(obs))
}

// RefreshTask handles POST /tasks/{taskID}/refresh.
func (h *TaskHandler) RefreshTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	handle, err := h.taskService.Watch(taskID)
	if err != nil {
		h.fail(w, "failed to watch task", taskID, err)
		return
	}
	defer h.taskService.Release(handle)

	obs, err := h.taskService.Refresh(r.Context(), handle)
	if err != nil {
		h.fail(w, "failed to refresh task", taskID, err)
		return
	}

	writeJSON(w, http.StatusOK, NewTaskView(obs))
}

// GetResult handles GET /tasks/{taskID}/result. Every call yields a fresh grant.
func (h *TaskHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	grant, err := h.taskService.ResolveDownload(r.Context(), taskID)
	if err != nil {
		h.fail(w, "failed to resolve download", taskID, err)
		return
	}

	writeJSON(w, http.StatusOK, grantResponse{
		TaskID:      grant.TaskID,
		DownloadURL: grant.PrimaryURL,
		SubtitleURL: grant.SubtitleURL,
		ExpiresIn:   int(grant.ExpiresIn / time.Second),
		ExpiresAt:   grant.ExpiresAt(),
	})
}

// DownloadArtifacts handles POST /tasks/{taskID}/download.
func (h *TaskHandler) DownloadArtifacts(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	saved, err := h.taskService.SaveArtifacts(r.Context(), taskID)
	if err != nil {
		h.fail(w, "failed to save artifacts", taskID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":   taskID,
		"artifacts": newArtifactViews(saved),
	})
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	if err := h.taskService.Delete(r.Context(), taskID); err != nil {
		h.fail(w, "failed to delete task", taskID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoteHealth handles GET /health/remote.
func (h *TaskHandler) RemoteHealth(w http.ResponseWriter, r *http.Request) {
	hs, err := h.taskService.Health(r.Context())
	if err != nil {
		h.fail(w, "remote health check failed", "", err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

// RemoteStats handles GET /stats/remote.
func (h *TaskHandler) RemoteStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.Stats(r.Context())
	if err != nil {
		h.fail(w, "remote stats request failed", "", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *TaskHandler) fail(w http.ResponseWriter, msg, taskID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "task_id", taskID, "error", err)
	} else {
		h.logger.Warn(msg, "task_id", taskID, "error", err)
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve *errpkg.ValidationError
		fe *errpkg.FetchError
		pe *errpkg.ParseError
	)

	switch {
	case errors.As(err, &ve), errors.Is(err, errpkg.ErrEmptyTaskID):
		return http.StatusBadRequest
	case errors.Is(err, errpkg.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fe):
		if fe.StatusCode >= 400 && fe.StatusCode < 500 {
			return fe.StatusCode
		}
		return http.StatusBadGateway
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
