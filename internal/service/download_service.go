package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
	errpkg "github.com/veranemoloko/dubbing-sync/internal/errors"
	"github.com/veranemoloko/dubbing-sync/internal/metrics"
	"github.com/veranemoloko/dubbing-sync/internal/validation"
)

// ResultFetcher issues download grants on the remote service.
type ResultFetcher interface {
	FetchResult(ctx context.Context, taskID string) (*domain.ResultResponse, error)
}

// ArtifactSaver writes the artifacts behind a grant to local storage.
type ArtifactSaver interface {
	SaveGrant(ctx context.Context, grant *domain.DownloadGrant) ([]domain.SavedArtifact, error)
}

// DownloadService exchanges task ids for download grants. Every call asks the
// remote service for a new grant; nothing is cached.
type DownloadService struct {
	results ResultFetcher
	saver   ArtifactSaver
	now     func() time.Time
	logger  *slog.Logger
}

func NewDownloadService(results ResultFetcher, saver ArtifactSaver, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		results: results,
		saver:   saver,
		now:     time.Now,
		logger:  logger,
	}
}

// Resolve requests a grant for the task. Whether the task is completed is left to the
// remote service to decide. Failures are returned as *errors.ResolveError and not retried.
func (s *DownloadService) Resolve(ctx context.Context, taskID string) (*domain.DownloadGrant, error) {
	if taskID == "" {
		metrics.GrantsFailed.Inc()
		return nil, &errpkg.ResolveError{Err: errpkg.ErrEmptyTaskID}
	}

	res, err := s.results.FetchResult(ctx, taskID)
	if err != nil {
		metrics.GrantsFailed.Inc()
		s.logger.Warn("download grant request failed",
			"task_id", taskID,
			"error", err,
		)
		return nil, &errpkg.ResolveError{TaskID: taskID, Err: err}
	}

	urls := []string{res.DownloadURL}
	if res.SubtitleURL != "" {
		urls = append(urls, res.SubtitleURL)
	}
	if err := validation.ValidateDownloadURLs(urls...); err != nil {
		metrics.GrantsFailed.Inc()
		return nil, &errpkg.ResolveError{TaskID: taskID, Err: err}
	}

	grant := &domain.DownloadGrant{
		TaskID:      taskID,
		PrimaryURL:  res.DownloadURL,
		SubtitleURL: res.SubtitleURL,
		ExpiresIn:   time.Duration(res.ExpiresIn) * time.Second,
		IssuedAt:    s.now(),
	}

	metrics.GrantsIssued.Inc()
	s.logger.Info("download grant issued",
		"task_id", taskID,
		"subtitle", grant.HasSubtitle(),
		"expires_in", grant.ExpiresIn,
	)
	return grant, nil
}

// ResolveFor resolves a grant for a known snapshot. A subtitle location is only
// kept when the task delivers subtitles as a separate file.
func (s *DownloadService) ResolveFor(ctx context.Context, task *domain.Task) (*domain.DownloadGrant, error) {
	grant, err := s.Resolve(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if task.SubtitleMode != domain.SubtitleModeExternal {
		grant.SubtitleURL = ""
	}
	return grant, nil
}

// Save resolves a fresh grant and stores its artifacts locally. task may be nil when
// no snapshot is known, in which case the grant is used as issued.
func (s *DownloadService) Save(ctx context.Context, taskID string, task *domain.Task) ([]domain.SavedArtifact, error) {
	var (
		grant *domain.DownloadGrant
		err   error
	)
	if task != nil && task.ID == taskID {
		grant, err = s.ResolveFor(ctx, task)
	} else {
		grant, err = s.Resolve(ctx, taskID)
	}
	if err != nil {
		return nil, err
	}

	return s.saver.SaveGrant(ctx, grant)
}
