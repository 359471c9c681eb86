package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
)

const maxErrorBody = 64 << 10

// Client talks to the remote dubbing service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
	logger       *slog.Logger
}

// ListOptions filters GET /tasks. Zero values are omitted from the query.
type ListOptions struct {
	Page     int
	PageSize int
	Status   string
}

// TaskPage is one page of parsed tasks.
type TaskPage struct {
	Items      []*domain.Task
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// New creates a Client for the API rooted at baseURL, e.g. http://localhost:8000/api/v1.
func New(baseURL string, timeout, uploadTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
		logger:       logger,
	}
}

// FetchTask retrieves and parses the snapshot of one task.
func (c *Client) FetchTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, errpkg.ErrEmptyTaskID
	}

	body, err := c.do(ctx, c.httpClient, "fetch task", taskID, http.MethodGet, c.taskURL(taskID), nil, "")
	if err != nil {
		return nil, err
	}

	task, err := domain.ParseTask(body)
	if err != nil {
		var pe *errpkg.ParseError
		if errors.As(err, &pe) && pe.TaskID == "" {
			pe.TaskID = taskID
		}
		return nil, err
	}
	return task, nil
}

// FetchResult asks the service for a short-lived download grant.
func (c *Client) FetchResult(ctx context.Context, taskID string) (*domain.ResultResponse, error) {
	if taskID == "" {
		return nil, errpkg.ErrEmptyTaskID
	}

	body, err := c.do(ctx, c.httpClient, "fetch result", taskID, http.MethodGet, c.taskURL(taskID)+"/result", nil, "")
	if err != nil {
		return nil, err
	}

	var res domain.ResultResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode result for task %s: %w", taskID, err)
	}
	return &res, nil
}

// DeleteTask removes a task on the remote service.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errpkg.ErrEmptyTaskID
	}

	_, err := c.do(ctx, c.httpClient, "delete task", taskID, http.MethodDelete, c.taskURL(taskID), nil, "")
	return err
}

// CreateTask uploads a video as multipart form data and returns the initial snapshot.
func (c *Client) CreateTask(ctx context.Context, req domain.CreateTaskRequest, filename string, video io.Reader) (*domain.Task, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeCreateForm(mw, req, filename, video))
	}()

	body, err := c.do(ctx, c.uploadClient, "create task", filename, http.MethodPost, c.baseURL+"/tasks", pr, mw.FormDataContentType())
	// unblock the writer if the request ended before the body was consumed
	pr.Close()
	if err != nil {
		return nil, err
	}

	return domain.ParseTask(body)
}

func writeCreateForm(mw *multipart.Writer, req domain.CreateTaskRequest, filename string, video io.Reader) error {
	part, err := mw.CreateFormFile("video", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, video); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}

	mode := req.SubtitleMode
	if mode == "" {
		mode = string(domain.SubtitleModeExternal)
	}

	fields := [][2]string{
		{"source_language", req.SourceLanguage},
		{"target_language", req.TargetLanguage},
		{"subtitle_mode", mode},
	}
	if req.Title != "" {
		fields = append(fields, [2]string{"title", req.Title})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	return mw.Close()
}

// ListTasks returns one page of tasks.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) (*TaskPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}

	target := c.baseURL + "/tasks"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	body, err := c.do(ctx, c.httpClient, "list tasks", "", http.MethodGet, target, nil, "")
	if err != nil {
		return nil, err
	}

	var resp domain.TaskListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &errpkg.ParseError{Err: err}
	}

	page := &TaskPage{
		Items:      make([]*domain.Task, 0, len(resp.Items)),
		Total:      resp.Total,
		Page:       resp.Page,
		PageSize:   resp.PageSize,
		TotalPages: resp.TotalPages,
	}
	for _, p := range resp.Items {
		task, err := domain.TaskFromPayload(p)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, task)
	}
	return page, nil
}

// Health reports the remote service health.
func (c *Client) Health(ctx context.Context) (*domain.HealthStatus, error) {
	body, err := c.do(ctx, c.httpClient, "health", "", http.MethodGet, c.baseURL+"/monitoring/health", nil, "")
	if err != nil {
		return nil, err
	}

	var hs domain.HealthStatus
	if err := json.Unmarshal(body, &hs); err != nil {
		return nil, fmt.Errorf("decode health status: %w", err)
	}
	return &hs, nil
}

// Stats reports task counts and worker activity on the remote service.
func (c *Client) Stats(ctx context.Context) (*domain.SystemStats, error) {
	body, err := c.do(ctx, c.httpClient, "stats", "", http.MethodGet, c.baseURL+"/monitoring/stats", nil, "")
	if err != nil {
		return nil, err
	}

	var stats domain.SystemStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("decode system stats: %w", err)
	}
	return &stats, nil
}

func (c *Client) taskURL(taskID string) string {
	return c.baseURL + "/tasks/" + url.PathEscape(taskID)
}

func (c *Client) do(ctx context.Context, hc *http.Client, op, taskID, method, target string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &errpkg.FetchError{Op: op, TaskID: taskID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug("remote request failed",
			"op", op,
			"task_id", taskID,
			"error", err,
		)
		return nil, &errpkg.FetchError{Op: op, TaskID: taskID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := errorMessage(raw)
		c.logger.Debug("remote request rejected",
			"op", op,
			"task_id", taskID,
			"status", resp.StatusCode,
			"message", msg,
		)
		return nil, &errpkg.FetchError{Op: op, TaskID: taskID, StatusCode: resp.StatusCode, Message: msg}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errpkg.FetchError{Op: op, TaskID: taskID, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("remote request completed",
		"op", op,
		"task_id", taskID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return data, nil
}

// errorMessage extracts the server message from {"detail": ...} or {"error": ...} bodies.
func errorMessage(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, field := range []json.RawMessage{body.Detail, body.Error} {
			if len(field) == 0 || bytes.Equal(field, []byte("null")) {
				continue
			}
			var s string
			if json.Unmarshal(field, &s) == nil {
				return s
			}
			return string(field)
		}
	}
	return strings.TrimSpace(string(raw))
}
