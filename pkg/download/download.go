package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/flanksource/clicky/task"
	fxhttp "github.com/flanksource/fxinstall/pkg/http"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/flanksource/fxinstall/pkg/utils"
)

// Result describes a fetched artifact waiting in a temporary file
type Result struct {
	// Path is the temporary file holding the artifact; the caller owns it
	Path string
	// Filename is the name the artifact is installed under
	Filename string
	Size     int64
	Duration time.Duration
}

// Option is a functional option for configuring fetches
type Option func(*fetchConfig)

type fetchConfig struct {
	client *http.Client
}

// WithClient overrides the HTTP client used for the artifact stream
func WithClient(client *http.Client) Option {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// ProgressReader wraps an io.Reader and reports progress to a task
type ProgressReader struct {
	io.Reader
	total      int64
	current    int64
	task       *task.Task
	lastUpdate time.Time
	startTime  time.Time
}

func NewProgressReader(r io.Reader, total int64, t *task.Task) *ProgressReader {
	now := time.Now()
	return &ProgressReader{Reader: r, total: total, task: t, startTime: now, lastUpdate: now}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.current += int64(n)

	if pr.task == nil {
		return n, err
	}

	// Update progress at most once per 100ms to avoid excessive updates
	now := time.Now()
	if now.Sub(pr.lastUpdate) >= 100*time.Millisecond {
		if pr.total > 0 {
			pr.task.SetProgress(int(pr.current), int(pr.total))

			elapsed := now.Sub(pr.startTime).Seconds()
			if elapsed > 0 && pr.current > 0 {
				speed := float64(pr.current) / elapsed
				eta := time.Duration(float64(pr.total-pr.current) / speed * float64(time.Second))

				pr.task.SetDescription(fmt.Sprintf("%s/%s (%s/s, ETA: %s)",
					humanize.IBytes(uint64(pr.current)),
					humanize.IBytes(uint64(pr.total)),
					humanize.IBytes(uint64(speed)),
					formatDuration(eta)))
			}
		} else {
			pr.task.SetDescription(fmt.Sprintf("Downloaded %s", humanize.IBytes(uint64(pr.current))))
		}
		pr.lastUpdate = now
	}

	return n, err
}

// Current returns the number of bytes read so far
func (pr *ProgressReader) Current() int64 {
	return pr.current
}

// Fetch streams artifact into a new file under tmpDir.
// The temporary file is removed before returning on any failure.
func Fetch(ctx context.Context, artifact *types.ResolvedArtifact, tmpDir string, t *task.Task, opts ...Option) (result *Result, err error) {
	config := &fetchConfig{}
	for _, opt := range opts {
		opt(config)
	}
	if config.client == nil {
		// the stream is bounded by ctx, not by a client timeout
		config.client = fxhttp.GetHttpClient(fxhttp.WithTimeout(0), fxhttp.WithRedirectLogging())
	}

	if artifact == nil || artifact.URL == "" {
		return nil, fmt.Errorf("nothing to fetch")
	}

	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", tmpDir, err)
		}
	}

	utils.LogDownloadStart(t, artifact.URL, artifact.Filename)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := config.client.Do(req)
	if err != nil {
		return nil, &types.ErrTransport{URL: artifact.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.ErrUpstreamUnavailable{URL: artifact.URL, StatusCode: resp.StatusCode, Expected: http.StatusOK}
	}

	out, err := os.CreateTemp(tmpDir, "fxinstall-*-"+artifact.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempFile := out.Name()
	defer func() {
		if err != nil {
			_ = out.Close()
			if removeErr := os.Remove(tempFile); removeErr != nil && !os.IsNotExist(removeErr) {
				utils.Warnf(t, "Failed to remove %s: %v", tempFile, removeErr)
			}
		}
	}()

	var reader io.Reader = resp.Body
	if t != nil {
		reader = NewProgressReader(resp.Body, resp.ContentLength, t)
	}

	written, err := io.Copy(out, reader)
	if err != nil {
		return nil, &types.ErrTransport{URL: artifact.URL, Err: err}
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		err = &types.ErrTransport{URL: artifact.URL, Err: fmt.Errorf("received %d of %d bytes: %w", written, resp.ContentLength, io.ErrUnexpectedEOF)}
		return nil, err
	}
	if err = out.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", tempFile, err)
	}

	result = &Result{
		Path:     tempFile,
		Filename: artifact.Filename,
		Size:     written,
		Duration: time.Since(start),
	}

	if t != nil {
		t.SetDescription(fmt.Sprintf("Downloaded %s (%s)", artifact.Filename, humanize.IBytes(uint64(written))))
	}
	utils.Debugf(t, "Fetched %s in %s", utils.FormatFileInfo(tempFile), formatDuration(result.Duration))
	return result, nil
}

// formatDuration formats duration into human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
