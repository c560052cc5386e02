package types

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/clicky/api/icons"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/samber/lo"
)

// DefaultLocale is used when no locale is configured
const DefaultLocale = "en-US"

// ArtifactRequest identifies one end-to-end resolve, fetch and install run
type ArtifactRequest struct {
	Channel  catalog.Channel  `json:"channel" yaml:"channel"`
	Platform catalog.Platform `json:"platform" yaml:"platform"`
	Locale   string           `json:"locale" yaml:"locale"`
}

// String returns "channel/locale (platform)"
func (r ArtifactRequest) String() string {
	return fmt.Sprintf("%s/%s (%s)", r.Channel, r.Locale, r.Platform)
}

// Validate checks the request against the catalog and rejects locales that
// could escape the install root.
func (r ArtifactRequest) Validate() error {
	if _, err := catalog.LookupChannel(r.Channel); err != nil {
		return err
	}
	if _, err := catalog.LookupPlatform(r.Platform); err != nil {
		return err
	}
	return ValidateLocale(r.Locale)
}

// ValidateLocale rejects locales that are empty or not a single path segment.
func ValidateLocale(locale string) error {
	switch {
	case strings.TrimSpace(locale) == "":
		return fmt.Errorf("locale must not be empty")
	case locale == "." || locale == "..":
		return fmt.Errorf("invalid locale %q", locale)
	case strings.ContainsAny(locale, `/\`):
		return fmt.Errorf("invalid locale %q: must not contain path separators", locale)
	}
	return nil
}

// ResolvedArtifact is a concrete download location for a request
type ResolvedArtifact struct {
	// URL is the absolute download URL
	URL string `json:"url" yaml:"url"`
	// Filename is the artifact name the download is installed under
	Filename string `json:"filename" yaml:"filename"`
	// Strategy is the name of the resolver that produced the artifact
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Validate enforces that the filename is set and matches the platform's extension
func (a ResolvedArtifact) Validate(extension *regexp.Regexp) error {
	if a.Filename == "" || (extension != nil && !extension.MatchString(a.Filename)) {
		pattern := ""
		if extension != nil {
			pattern = extension.String()
		}
		return &ErrInvalidArtifact{Filename: a.Filename, URL: a.URL, Pattern: pattern}
	}
	return nil
}

func (a ResolvedArtifact) Pretty() api.Text {
	text := clicky.Text("").Append(a.Filename, "bold")
	if a.URL != "" {
		text = text.Append(" -> ", "text-muted").Append(a.URL, "text-underline")
	}
	if a.Strategy != "" {
		text = text.Append(" via "+a.Strategy, "text-muted")
	}
	return text
}

// InstallTarget is the directory holding one channel/locale installation.
// It is keyed by channel and locale only, never by platform.
type InstallTarget struct {
	Directory string `json:"directory" yaml:"directory"`
}

// NewInstallTarget computes root/<channel local token>/<locale>
func NewInstallTarget(root string, channel catalog.Channel, locale string) (InstallTarget, error) {
	local, err := catalog.ChannelToken(channel, catalog.TokenLocal)
	if err != nil {
		return InstallTarget{}, err
	}
	if err := ValidateLocale(locale); err != nil {
		return InstallTarget{}, err
	}
	return InstallTarget{Directory: filepath.Join(root, local, locale)}, nil
}

// Parent is the per-channel directory that holds the target and its siblings
func (t InstallTarget) Parent() string {
	return filepath.Dir(t.Directory)
}

// Name is the final path element, i.e. the locale
func (t InstallTarget) Name() string {
	return filepath.Base(t.Directory)
}

type InstallStatus string

const (
	InstallStatusInstalled InstallStatus = "installed"
	InstallStatusCurrent   InstallStatus = "current"
	InstallStatusFailed    InstallStatus = "failed"
)

func (s InstallStatus) Pretty() api.Text {
	switch s {
	case InstallStatusInstalled:
		return clicky.Text("").Add(icons.Success).Append(" Installed", "text-green-500")
	case InstallStatusCurrent:
		return clicky.Text("").Add(icons.Skip).Append(" Up to date", "text-yellow-500")
	case InstallStatusFailed:
		return clicky.Text("").Add(icons.Error).Append(" Failed", "text-red-500")
	default:
		return clicky.Text(string(s))
	}
}

// InstallResult is the outcome of one channel's unit of work
type InstallResult struct {
	Request  ArtifactRequest   `json:"request" yaml:"request"`
	Artifact *ResolvedArtifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Target   InstallTarget     `json:"target" yaml:"target"`
	Size     int64             `json:"size,omitempty" yaml:"size,omitempty"`
	Status   InstallStatus     `json:"status" yaml:"status"`
	Duration time.Duration     `json:"duration" yaml:"duration"`
	Err      error             `json:"-" yaml:"-"`
}

// Error returns the failure message, if any
func (r InstallResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r InstallResult) Pretty() api.Text {
	text := clicky.Text("").Append(string(r.Request.Channel), "bold").
		Append("/" + r.Request.Locale).
		Append(" ").Add(r.Status.Pretty())

	if r.Artifact != nil && r.Artifact.Filename != "" {
		text = text.Append(" "+r.Artifact.Filename, "text-muted")
	}
	if r.Size > 0 {
		text = text.Append(" downloaded: ", "muted").Append(humanize.IBytes(uint64(r.Size)))
	}
	if r.Duration > 0 {
		text = text.Append(" in ", "muted").Printf("%s", r.Duration.Round(time.Millisecond))
	}
	if r.Err != nil {
		text = text.Append(fmt.Sprintf(" [%s] %v", Classify(r.Err), r.Err), "text-red-500")
	}
	return text
}

// Summary aggregates the results of every requested channel
type Summary struct {
	Results []InstallResult `json:"results" yaml:"results"`
}

// Failed returns the results that did not complete
func (s Summary) Failed() []InstallResult {
	return lo.Filter(s.Results, func(r InstallResult, _ int) bool {
		return r.Status == InstallStatusFailed
	})
}

// Succeeded returns the results that installed or were already current
func (s Summary) Succeeded() []InstallResult {
	return lo.Filter(s.Results, func(r InstallResult, _ int) bool {
		return r.Status != InstallStatusFailed
	})
}

// Err returns nil when every channel succeeded, or an error naming the failed channels
func (s Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := lo.Map(failed, func(r InstallResult, _ int) string { return string(r.Request.Channel) })
	return fmt.Errorf("%d of %d channels failed: %s", len(failed), len(s.Results), strings.Join(names, ", "))
}

func (s Summary) Pretty() api.Text {
	text := clicky.Text("")
	for _, r := range s.Results {
		text = text.Add(r.Pretty()).Append("\n")
	}
	failed := len(s.Failed())
	if failed == 0 {
		return text.Add(icons.Success).Append(fmt.Sprintf(" All %d channels completed", len(s.Results)), "text-green-500")
	}
	return text.Add(icons.Error).Append(fmt.Sprintf(" %d of %d channels failed", failed, len(s.Results)), "text-red-500")
}

// Strategy selects how a request is turned into a download location
type Strategy string

const (
	StrategyListing  Strategy = "listing"
	StrategyRedirect Strategy = "redirect"
)

// AmbiguityPolicy decides what happens when a standard channel listing has several matches
type AmbiguityPolicy string

const (
	// PolicyStrict fails the channel with ErrAmbiguousListing
	PolicyStrict AmbiguityPolicy = "strict"
	// PolicyLenient logs a warning and takes the lexicographically last match
	PolicyLenient AmbiguityPolicy = "lenient"
)
