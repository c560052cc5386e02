package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	"github.com/flanksource/fxinstall/pkg/download"
	"github.com/flanksource/fxinstall/pkg/resolver"
	"github.com/flanksource/fxinstall/pkg/state"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/flanksource/fxinstall/pkg/utils"
)

// saveRecord is swapped in tests to simulate an unwritable install record
var saveRecord = state.Save

// Installer resolves, fetches and installs channels into an install root
type Installer struct {
	config  *config.Config
	options InstallOptions
}

// New creates an installer for cfg. Options override the values taken from the configuration.
func New(cfg *config.Config, opts ...InstallOption) (*Installer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := InstallOptions{
		TmpDir:      cfg.TmpDir,
		SkipCurrent: cfg.SkipCurrent,
		UnitTimeout: cfg.UnitTimeout,
		UseTasks:    true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.RunID == "" {
		options.RunID = state.NewRunID()
	}
	if options.resolver == nil {
		r, err := resolver.New(cfg)
		if err != nil {
			return nil, err
		}
		options.resolver = r
	}

	return &Installer{config: cfg, options: options}, nil
}

// Options returns the effective options
func (i *Installer) Options() InstallOptions {
	return i.options
}

// Resolve returns the artifact the configured strategy selects for req, without downloading it
func (i *Installer) Resolve(ctx context.Context, req types.ArtifactRequest) (*types.ResolvedArtifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return i.options.resolver.Resolve(ctx, req)
}

// Target returns the install target for req
func (i *Installer) Target(req types.ArtifactRequest) (types.InstallTarget, error) {
	return types.NewInstallTarget(i.config.InstallRoot, req.Channel, req.Locale)
}

// Run resolves, fetches and installs a single request. It never panics on failure;
// the returned result carries the error and a failed status.
func (i *Installer) Run(ctx context.Context, req types.ArtifactRequest, t *task.Task) types.InstallResult {
	start := time.Now()
	result := types.InstallResult{Request: req}

	artifact, size, status, err := i.run(ctx, req, &result, t)
	result.Artifact = artifact
	result.Size = size
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = types.InstallStatusFailed
		result.Err = err
		return result
	}
	result.Status = status
	return result
}

func (i *Installer) run(ctx context.Context, req types.ArtifactRequest, result *types.InstallResult, t *task.Task) (*types.ResolvedArtifact, int64, types.InstallStatus, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, "", err
	}
	platform, err := catalog.LookupPlatform(req.Platform)
	if err != nil {
		return nil, 0, "", err
	}
	target, err := i.Target(req)
	if err != nil {
		return nil, 0, "", err
	}
	result.Target = target

	if i.options.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.options.UnitTimeout)
		defer cancel()
	}

	if t != nil {
		t.SetDescription(fmt.Sprintf("Resolving %s", req))
	}
	artifact, err := i.options.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, 0, "", timeoutError(ctx, err)
	}
	utils.Infof(t, "Resolved %s -> %s", req, artifact.Filename)

	if i.options.SkipCurrent && i.isCurrent(req, target, artifact) {
		utils.Infof(t, "%s is already installed at %s", artifact.Filename, utils.LogPath(target.Directory))
		return artifact, 0, types.InstallStatusCurrent, nil
	}

	cleanup := NewCleanupManager(t)
	defer cleanup.Cleanup()

	var fetchOpts []download.Option
	if i.options.client != nil {
		fetchOpts = append(fetchOpts, download.WithClient(i.options.client))
	}
	fetched, err := download.Fetch(ctx, artifact, i.options.TmpDir, t, fetchOpts...)
	if err != nil {
		return artifact, 0, "", timeoutError(ctx, err)
	}
	cleanup.AddFile(fetched.Path)

	if err := ctx.Err(); err != nil {
		return artifact, fetched.Size, "", timeoutError(ctx, &types.ErrTransport{URL: artifact.URL, Err: err})
	}

	err = utils.LogOperation(t, "Installing", target.Name(), func() error {
		return i.install(fetched, target, platform, cleanup, t)
	})
	if err != nil {
		return artifact, fetched.Size, "", err
	}

	record := state.Record{
		Channel:     req.Channel,
		Locale:      req.Locale,
		Platform:    req.Platform,
		Filename:    artifact.Filename,
		URL:         artifact.URL,
		Strategy:    artifact.Strategy,
		Size:        fetched.Size,
		Directory:   target.Directory,
		InstalledAt: time.Now().UTC(),
		RunID:       i.options.RunID,
	}
	if err := saveRecord(i.config.InstallRoot, record); err != nil {
		utils.Warnf(t, "Installed %s but failed to save install record: %v", req, err)
		// the previous record describes the tree that was just replaced
		if err := state.Remove(i.config.InstallRoot, req.Channel, req.Locale); err != nil {
			utils.Warnf(t, "Failed to remove outdated install record for %s: %v", req, err)
		}
	}

	utils.Infof(t, "Installed %s to %s", artifact.Filename, utils.LogPath(target.Directory))
	return artifact, fetched.Size, types.InstallStatusInstalled, nil
}

// install stages the fetched artifact next to target and swaps it into place.
// The previous contents of target survive any failure.
func (i *Installer) install(fetched *download.Result, target types.InstallTarget, platform catalog.PlatformDescriptor, cleanup *CleanupManager, t *task.Task) error {
	removeStale(target, t)

	staging, err := stage(fetched, target, platform, cleanup, t)
	if err != nil {
		return err
	}
	return swap(staging, target, t)
}

func (i *Installer) isCurrent(req types.ArtifactRequest, target types.InstallTarget, artifact *types.ResolvedArtifact) bool {
	record, err := state.Load(i.config.InstallRoot, req.Channel, req.Locale)
	if err != nil || record == nil {
		return false
	}
	if record.Filename != artifact.Filename || record.Platform != req.Platform {
		return false
	}
	_, err = os.Stat(target.Directory)
	return err == nil
}

// timeoutError reports a unit timeout as a transport failure even when the
// underlying error came from a resolver that does not wrap ctx errors.
func timeoutError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && types.Classify(err) != types.KindTransport {
		return &types.ErrTransport{Err: fmt.Errorf("%w: %v", ctx.Err(), err)}
	}
	return err
}

// ErrDuplicateRequest is returned when two requests share an install target
type ErrDuplicateRequest struct {
	First, Second types.ArtifactRequest
	Target        string
}

func (e *ErrDuplicateRequest) Error() string {
	return fmt.Sprintf("%s and %s both install to %s", e.First, e.Second, e.Target)
}

var noRetry = task.RetryConfig{MaxRetries: 0}

func (i *Installer) checkDuplicates(reqs []types.ArtifactRequest) error {
	seen := make(map[string]types.ArtifactRequest, len(reqs))
	for _, req := range reqs {
		target, err := i.Target(req)
		if err != nil {
			// reported per channel by Run
			continue
		}
		if first, exists := seen[target.Directory]; exists {
			return &ErrDuplicateRequest{First: first, Second: req, Target: target.Directory}
		}
		seen[target.Directory] = req
	}
	return nil
}

// InstallChannels runs every request concurrently and waits for all of them.
// A failing channel never cancels the others. The returned error is only set when the
// batch could not start; per-channel failures are reported through the summary.
func (i *Installer) InstallChannels(ctx context.Context, reqs []types.ArtifactRequest) (*types.Summary, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no channels requested")
	}
	if err := i.checkDuplicates(reqs); err != nil {
		return nil, err
	}

	results := make([]types.InstallResult, len(reqs))

	if i.options.UseTasks {
		// The task manager runs a fixed pool of workers, so every unit gets its own
		// goroutine and the task only reports it. Units are never retried.
		task.SetRetryConfig(noRetry)
		var wg sync.WaitGroup
		for idx, req := range reqs {
			done := make(chan struct{})
			tracked := task.StartTask(req.String(), func(_ flanksourceContext.Context, _ *task.Task) (interface{}, error) {
				<-done
				if err := results[idx].Err; err != nil {
					return results[idx], fmt.Errorf("failed to install %s: %w", req, err)
				}
				return results[idx], nil
			}, task.WithRetryConfig(noRetry))

			t := tracked.GetTask()
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer close(done)
				unitCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				stop := context.AfterFunc(t.Context(), cancel)
				defer stop()
				results[idx] = i.Run(unitCtx, req, t)
			}()
		}
		wg.Wait()
		task.WaitForAllTasks()
	} else {
		var wg sync.WaitGroup
		for idx, req := range reqs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[idx] = i.Run(ctx, req, nil)
			}()
		}
		wg.Wait()
	}

	for idx := range results {
		if results[idx].Status == "" {
			results[idx] = types.InstallResult{
				Request: reqs[idx],
				Status:  types.InstallStatusFailed,
				Err:     fmt.Errorf("%s did not complete", reqs[idx]),
			}
		}
	}
	return &types.Summary{Results: results}, nil
}
