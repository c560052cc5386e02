package cmd

import (
	"runtime"
	"strings"

	"github.com/flanksource/clicky"
	"github.com/flanksource/fxinstall/pkg/resolver"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	dirty   = "false"
)

// SetVersion records the build metadata injected by ldflags
func SetVersion(v, c, d, dt string) {
	version, commit, date, dirty = v, c, d, dt
}

type VersionOptions struct{}

// BuildInfo describes the running binary
type BuildInfo struct {
	Version    string `json:"version" pretty:"label=Version"`
	Commit     string `json:"commit" pretty:"label=Commit"`
	Date       string `json:"date" pretty:"label=Built"`
	Dirty      string `json:"dirty,omitempty" pretty:"label=Dirty"`
	GoVersion  string `json:"go_version" pretty:"label=Go"`
	Platform   string `json:"platform" pretty:"label=Platform"`
	Strategies string `json:"strategies" pretty:"label=Strategies"`
}

func init() {
	clicky.AddCommand(rootCmd, VersionOptions{}, func(opts VersionOptions) (any, error) {
		return GetVersion(), nil
	})
}

func GetVersion() BuildInfo {
	return BuildInfo{
		Version:    version,
		Commit:     commit,
		Date:       date,
		Dirty:      dirty,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		Strategies: strings.Join(resolver.Strategies(), ", "),
	}
}
