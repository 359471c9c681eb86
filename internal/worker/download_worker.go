package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/dubbing-sync/internal/domain"
	"github.com/veranemoloko/dubbing-sync/internal/metrics"
	"github.com/veranemoloko/dubbing-sync/internal/storage"
)

// ArtifactWorker saves the files behind a DownloadGrant into an ArtifactStore.
type ArtifactWorker struct {
	store      *storage.ArtifactStore
	httpClient *http.Client
	parallel   int
	now        func() time.Time
	logger     *slog.Logger
}

// NewArtifactWorker creates a worker that runs at most parallel transfers at once.
func NewArtifactWorker(store *storage.ArtifactStore, timeout time.Duration, parallel int, logger *slog.Logger) *ArtifactWorker {
	if parallel <= 0 {
		parallel = 1
	}
	return &ArtifactWorker{
		store: store,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		parallel: parallel,
		now:      time.Now,
		logger:   logger,
	}
}

// SaveGrant downloads the primary artifact and, if present, the subtitle artifact.
// Files are named after the task id with the extension of the URL path. A grant
// that has already run out is refused without any request.
func (w *ArtifactWorker) SaveGrant(ctx context.Context, grant *domain.DownloadGrant) ([]domain.SavedArtifact, error) {
	if grant.ExpiresIn > 0 && grant.Expired(w.now()) {
		return nil, fmt.Errorf("download grant for task %s expired at %s", grant.TaskID, grant.ExpiresAt().Format(time.RFC3339))
	}

	type job struct {
		kind domain.ArtifactKind
		url  string
		name string
	}

	jobs := []job{{
		kind: domain.ArtifactVideo,
		url:  grant.PrimaryURL,
		name: artifactName(grant.TaskID, grant.PrimaryURL, ".mp4"),
	}}
	if grant.HasSubtitle() {
		jobs = append(jobs, job{
			kind: domain.ArtifactSubtitle,
			url:  grant.SubtitleURL,
			name: artifactName(grant.TaskID, grant.SubtitleURL, ".ass"),
		})
	}

	saved := make([]domain.SavedArtifact, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallel)

	for i, j := range jobs {
		g.Go(func() error {
			art, err := w.Fetch(ctx, j.url, j.name)
			if err != nil {
				return fmt.Errorf("%s: %w", j.kind, err)
			}
			art.Kind = j.kind
			saved[i] = art
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		w.logger.Error("artifact download failed",
			"task_id", grant.TaskID,
			"error", err,
		)
		return nil, fmt.Errorf("save artifacts for task %s: %w", grant.TaskID, err)
	}

	w.logger.Info("artifacts saved",
		"task_id", grant.TaskID,
		"count", len(saved),
	)
	return saved, nil
}

// Fetch downloads one URL into the store under name, resuming an interrupted transfer
// when the server honours the Range header. A partial file the server will not resume
// from (416) is thrown away and the transfer restarts once from the beginning.
func (w *ArtifactWorker) Fetch(ctx context.Context, rawURL, name string) (domain.SavedArtifact, error) {
	art := domain.SavedArtifact{}

	offset := w.store.PartialSize(name)

	resp, err := w.get(ctx, rawURL, offset)
	if err != nil {
		return art, err
	}
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0 {
		resp.Body.Close()
		w.logger.Warn("partial artifact not resumable, restarting",
			"name", name,
			"offset", offset,
		)
		if err := w.store.Discard(name); err != nil {
			return art, fmt.Errorf("discard partial file: %w", err)
		}
		offset = 0
		if resp, err = w.get(ctx, rawURL, 0); err != nil {
			return art, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return art, fmt.Errorf("bad status: %s", resp.Status)
	}

	resume := offset > 0 && resp.StatusCode == http.StatusPartialContent
	if !resume {
		offset = 0
	}

	file, err := w.store.OpenPartial(name, resume)
	if err != nil {
		return art, fmt.Errorf("open file: %w", err)
	}

	n, err := copyWithContext(ctx, file, resp.Body)
	metrics.ArtifactBytes.Add(float64(n))
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// the partial file is kept for the next attempt
		return art, fmt.Errorf("copy data: %w", err)
	}

	p, err := w.store.Commit(name)
	if err != nil {
		return art, err
	}

	w.logger.Debug("artifact downloaded",
		"name", name,
		"bytes", offset+n,
		"resumed", resume,
	)

	art.Path = p
	art.Bytes = offset + n
	art.Resumed = resume
	return art, nil
}

func (w *ArtifactWorker) get(ctx context.Context, rawURL string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return resp, nil
}

func copyWithContext(ctx context.Context, dst *os.File, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
			if nw != nr {
				return total, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// artifactName derives a local file name from the URL path, ignoring presigning query parameters.
func artifactName(taskID, rawURL, fallbackExt string) string {
	ext := fallbackExt
	if u, err := url.Parse(rawURL); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 8 && !strings.ContainsAny(e, `\`) {
			ext = strings.ToLower(e)
		}
	}

	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, taskID)
	return safe + ext
}
