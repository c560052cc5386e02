package installer

import (
	"net/http"
	"time"

	"github.com/flanksource/fxinstall/pkg/resolver"
)

// InstallOptions configures the installation behavior
type InstallOptions struct {
	// TmpDir receives downloads before they are staged; empty uses the system default
	TmpDir string
	// SkipCurrent skips targets whose install record already names the resolved artifact
	SkipCurrent bool
	// UnitTimeout bounds one channel's resolve, fetch and install; 0 disables it
	UnitTimeout time.Duration
	// UseTasks runs each channel as a clicky task instead of a bare goroutine
	UseTasks bool
	// RunID is stamped on every install record written by this installer
	RunID string

	resolver resolver.Resolver
	client   *http.Client
}

// InstallOption is a functional option for configuring installation
type InstallOption func(*InstallOptions)

// WithTmpDir sets the download directory
func WithTmpDir(dir string) InstallOption {
	return func(opts *InstallOptions) {
		opts.TmpDir = dir
	}
}

// WithSkipCurrent enables or disables skipping targets that are already current
func WithSkipCurrent(skip bool) InstallOption {
	return func(opts *InstallOptions) {
		opts.SkipCurrent = skip
	}
}

// WithUnitTimeout sets the per-channel timeout
func WithUnitTimeout(timeout time.Duration) InstallOption {
	return func(opts *InstallOptions) {
		opts.UnitTimeout = timeout
	}
}

// WithTasks enables or disables clicky task tracking
func WithTasks(enabled bool) InstallOption {
	return func(opts *InstallOptions) {
		opts.UseTasks = enabled
	}
}

// WithRunID overrides the generated run id
func WithRunID(id string) InstallOption {
	return func(opts *InstallOptions) {
		opts.RunID = id
	}
}

// WithResolver replaces the resolver selected by the configured strategy
func WithResolver(r resolver.Resolver) InstallOption {
	return func(opts *InstallOptions) {
		opts.resolver = r
	}
}

// WithHTTPClient sets the client used to stream artifacts
func WithHTTPClient(client *http.Client) InstallOption {
	return func(opts *InstallOptions) {
		opts.client = client
	}
}
