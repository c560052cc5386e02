package fxinstall

import (
	"context"

	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	"github.com/flanksource/fxinstall/pkg/installer"
	"github.com/flanksource/fxinstall/pkg/state"
	"github.com/flanksource/fxinstall/pkg/types"
)

// Re-export commonly used types for public API
type (
	Config           = config.Config
	Channel          = catalog.Channel
	Platform         = catalog.Platform
	ArtifactRequest  = types.ArtifactRequest
	ResolvedArtifact = types.ResolvedArtifact
	InstallResult    = types.InstallResult
	InstallStatus    = types.InstallStatus
	Summary          = types.Summary
	Record           = state.Record
	CheckResult      = installer.CheckResult
)

// Re-export channel, platform and status constants
const (
	Release = catalog.Release
	Beta    = catalog.Beta
	ESR     = catalog.ESR
	Aurora  = catalog.Aurora
	Nightly = catalog.Nightly

	LinuxX86_64 = catalog.LinuxX86_64
	LinuxI686   = catalog.LinuxI686
	Mac         = catalog.Mac
	Win32       = catalog.Win32
	Win64       = catalog.Win64

	InstallStatusInstalled = types.InstallStatusInstalled
	InstallStatusCurrent   = types.InstallStatusCurrent
	InstallStatusFailed    = types.InstallStatusFailed
)

// Re-export installer options
type InstallOption = installer.InstallOption

var (
	WithTmpDir      = installer.WithTmpDir
	WithSkipCurrent = installer.WithSkipCurrent
	WithUnitTimeout = installer.WithUnitTimeout
	WithTasks       = installer.WithTasks
	WithRunID       = installer.WithRunID
	WithHTTPClient  = installer.WithHTTPClient
)

// DefaultConfig returns the built-in configuration
func DefaultConfig() (*Config, error) {
	return config.LoadDefaultConfig()
}

// LoadConfig reads defaults, the optional config file, .env and FXINSTALL_* variables
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Install installs the latest build of each channel, or of the configured channels
// when none are given, and returns a per-channel summary.
// The error is non-nil when the batch could not start or any channel failed.
//
// Example:
//
//	cfg, _ := fxinstall.LoadConfig("")
//	summary, err := fxinstall.Install(ctx, cfg, []fxinstall.Channel{fxinstall.Beta, fxinstall.Nightly})
//	if err != nil {
//	    log.Print(err)
//	}
//	fmt.Println(summary.Pretty())
func Install(ctx context.Context, cfg *Config, channels []Channel, opts ...InstallOption) (*Summary, error) {
	inst, err := installer.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	summary, err := inst.InstallChannels(ctx, cfg.Requests(channels...))
	if err != nil {
		return nil, err
	}
	return summary, summary.Err()
}

// Resolve returns the download location of the latest build of channel without installing it
func Resolve(ctx context.Context, cfg *Config, channel Channel) (*ResolvedArtifact, error) {
	inst, err := installer.New(cfg, WithTasks(false))
	if err != nil {
		return nil, err
	}
	reqs := cfg.Requests(channel)
	return inst.Resolve(ctx, reqs[0])
}

// Check compares the installed build of each channel with the latest upstream build
func Check(ctx context.Context, cfg *Config, channels ...Channel) ([]CheckResult, error) {
	inst, err := installer.New(cfg, WithTasks(false))
	if err != nil {
		return nil, err
	}
	return inst.Check(ctx, cfg.Requests(channels...)), nil
}

// Status lists the install records under the configured install root
func Status(cfg *Config) ([]Record, error) {
	return state.List(cfg.InstallRoot)
}
