package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/veranemoloko/dubbing-sync/internal/client"
	"github.com/veranemoloko/dubbing-sync/internal/domain"
	"github.com/veranemoloko/dubbing-sync/internal/engine"
	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
	"github.com/veranemoloko/dubbing-sync/internal/validation"
)

// RemoteTasks is the part of the remote API used for user-initiated actions.
type RemoteTasks interface {
	DeleteTask(ctx context.Context, taskID string) error
	CreateTask(ctx context.Context, req domain.CreateTaskRequest, filename string, video io.Reader) (*domain.Task, error)
	ListTasks(ctx context.Context, opts client.ListOptions) (*client.TaskPage, error)
	Health(ctx context.Context) (*domain.HealthStatus, error)
	Stats(ctx context.Context) (*domain.SystemStats, error)
}

// SyncEngine keeps observed tasks up to date.
type SyncEngine interface {
	Subscribe(taskID string) (*engine.Handle, error)
	Unsubscribe(h *engine.Handle)
	Current(h *engine.Handle) (engine.Observation, error)
	RefreshNow(ctx context.Context, h *engine.Handle) (engine.Observation, error)
	Snapshot(taskID string) (*domain.Task, bool)
	Prime(task *domain.Task)
	Forget(taskID string)
}

// Resolver issues download grants and saves artifacts.
type Resolver interface {
	Resolve(ctx context.Context, taskID string) (*domain.DownloadGrant, error)
	ResolveFor(ctx context.Context, task *domain.Task) (*domain.DownloadGrant, error)
	Save(ctx context.Context, taskID string, task *domain.Task) ([]domain.SavedArtifact, error)
}

// TaskService is the entry point for everything a user can do with a task.
type TaskService struct {
	remote   RemoteTasks
	engine   SyncEngine
	resolver Resolver
	logger   *slog.Logger
}

func NewTaskService(remote RemoteTasks, eng SyncEngine, resolver Resolver, logger *slog.Logger) *TaskService {
	return &TaskService{
		remote:   remote,
		engine:   eng,
		resolver: resolver,
		logger:   logger,
	}
}

// Watch starts observing a task. The caller must Release the handle.
func (s *TaskService) Watch(taskID string) (*engine.Handle, error) {
	return s.engine.Subscribe(taskID)
}

func (s *TaskService) Release(h *engine.Handle) {
	s.engine.Unsubscribe(h)
}

func (s *TaskService) Current(h *engine.Handle) (engine.Observation, error) {
	return s.engine.Current(h)
}

// Refresh forces an immediate refresh of a watched task.
func (s *TaskService) Refresh(ctx context.Context, h *engine.Handle) (engine.Observation, error) {
	obs, err := s.engine.RefreshNow(ctx, h)
	if err != nil {
		s.logger.Warn("manual refresh failed",
			"task_id", h.TaskID(),
			"error", err,
		)
	}
	return obs, err
}

// View returns the state of a task, waiting for the first fetch if nothing is cached.
func (s *TaskService) View(ctx context.Context, taskID string) (engine.Observation, error) {
	h, err := s.engine.Subscribe(taskID)
	if err != nil {
		return engine.Observation{}, err
	}
	defer s.engine.Unsubscribe(h)

	for {
		select {
		case obs, ok := <-h.Updates():
			if !ok {
				return engine.Observation{}, errpkg.ErrUnknownHandle
			}
			if !obs.Loading() {
				return obs, nil
			}
		case <-ctx.Done():
			return engine.Observation{}, ctx.Err()
		}
	}
}

// Create validates the request, uploads the video and seeds the engine with the initial snapshot.
func (s *TaskService) Create(ctx context.Context, req domain.CreateTaskRequest, filename string, video io.Reader) (*domain.Task, error) {
	if err := validation.ValidateCreateTask(&req); err != nil {
		return nil, &errpkg.ValidationError{Err: err}
	}

	task, err := s.remote.CreateTask(ctx, req, filename, video)
	if err != nil {
		s.logger.Error("task creation failed",
			"file", filename,
			"error", err,
		)
		return nil, err
	}

	s.engine.Prime(task)
	s.logger.Info("task created",
		"task_id", task.ID,
		"source_language", task.SourceLanguage,
		"target_language", task.TargetLanguage,
	)
	return task, nil
}

// Delete removes the task remotely and drops every local trace of it.
func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	if err := s.remote.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.engine.Forget(taskID)
	s.logger.Info("task deleted", "task_id", taskID)
	return nil
}

func (s *TaskService) List(ctx context.Context, opts client.ListOptions) (*client.TaskPage, error) {
	return s.remote.ListTasks(ctx, opts)
}

func (s *TaskService) Health(ctx context.Context) (*domain.HealthStatus, error) {
	return s.remote.Health(ctx)
}

func (s *TaskService) Stats(ctx context.Context) (*domain.SystemStats, error) {
	return s.remote.Stats(ctx)
}

// ResolveDownload issues a fresh grant, trimming the subtitle location when the
// cached snapshot says there is no separate subtitle file.
func (s *TaskService) ResolveDownload(ctx context.Context, taskID string) (*domain.DownloadGrant, error) {
	if task, ok := s.engine.Snapshot(taskID); ok {
		return s.resolver.ResolveFor(ctx, task)
	}
	return s.resolver.Resolve(ctx, taskID)
}

// SaveArtifacts downloads the artifacts of a task into the local download directory.
func (s *TaskService) SaveArtifacts(ctx context.Context, taskID string) ([]domain.SavedArtifact, error) {
	task, _ := s.engine.Snapshot(taskID)
	return s.resolver.Save(ctx, taskID, task)
}
