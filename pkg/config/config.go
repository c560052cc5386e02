package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/platform"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFile = "fxinstall.yaml"
	EnvFile    = ".env"
	EnvPrefix  = "FXINSTALL_"
)

// Config is passed explicitly to every component; nothing reads it from package state.
type Config struct {
	InstallRoot            string                `json:"install_root" yaml:"install_root"`
	Platform               catalog.Platform      `json:"platform" yaml:"platform"`
	Locale                 string                `json:"locale" yaml:"locale"`
	Channels               []catalog.Channel     `json:"channels,omitempty" yaml:"channels,omitempty"`
	Strategy               types.Strategy        `json:"strategy" yaml:"strategy"`
	AmbiguityPolicy        types.AmbiguityPolicy `json:"ambiguity_policy" yaml:"ambiguity_policy"`
	ListingBaseURL         string                `json:"listing_base_url" yaml:"listing_base_url"`
	RedirectBaseURL        string                `json:"redirect_base_url" yaml:"redirect_base_url"`
	ReleaseListingTemplate string                `json:"release_listing_template" yaml:"release_listing_template"`
	NightlyListingTemplate string                `json:"nightly_listing_template" yaml:"nightly_listing_template"`
	TmpDir                 string                `json:"tmp_dir,omitempty" yaml:"tmp_dir,omitempty"`
	// UnitTimeout bounds one channel's resolve, fetch and install; 0 disables it
	UnitTimeout time.Duration `json:"unit_timeout" yaml:"unit_timeout"`
	// HTTPTimeout bounds listing and redirect requests, not artifact streams
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`
	SkipCurrent bool          `json:"skip_current" yaml:"skip_current"`
}

// Load builds the configuration from the embedded defaults, the YAML file at path
// and the environment, in increasing order of precedence.
// A missing file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	config, err := LoadDefaultConfig()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = ConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		logger.V(3).Infof("Loaded config from %s", path)
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logger.V(4).Infof("No config file at %s, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := godotenv.Load(EnvFile); err == nil {
		logger.V(3).Infof("Loaded environment from %s", EnvFile)
	}
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.ResolvePlatform(); err != nil {
		return nil, err
	}

	if err := config.ExpandPaths(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from FXINSTALL_* variables returned by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = d
		return nil
	}

	str("INSTALL_ROOT", &c.InstallRoot)
	str("LOCALE", &c.Locale)
	str("LISTING_BASE_URL", &c.ListingBaseURL)
	str("REDIRECT_BASE_URL", &c.RedirectBaseURL)
	str("TMP_DIR", &c.TmpDir)

	if v, ok := lookup(EnvPrefix + "PLATFORM"); ok && v != "" {
		c.Platform = catalog.Platform(v)
	}
	if v, ok := lookup(EnvPrefix + "STRATEGY"); ok && v != "" {
		c.Strategy = types.Strategy(v)
	}
	if v, ok := lookup(EnvPrefix + "AMBIGUITY_POLICY"); ok && v != "" {
		c.AmbiguityPolicy = types.AmbiguityPolicy(v)
	}
	if v, ok := lookup(EnvPrefix + "CHANNELS"); ok && v != "" {
		channels, err := catalog.ParseChannels(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("invalid %sCHANNELS: %w", EnvPrefix, err)
		}
		c.Channels = channels
	}
	if v, ok := lookup(EnvPrefix + "SKIP_CURRENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSKIP_CURRENT=%q: %w", EnvPrefix, v, err)
		}
		c.SkipCurrent = b
	}

	if err := dur("UNIT_TIMEOUT", &c.UnitTimeout); err != nil {
		return err
	}
	return dur("HTTP_TIMEOUT", &c.HTTPTimeout)
}

// ResolvePlatform replaces "auto" and platform aliases with the canonical platform
func (c *Config) ResolvePlatform() error {
	p, err := platform.Parse(string(c.Platform))
	if err != nil {
		return err
	}
	c.Platform = p
	return nil
}

// ExpandPaths resolves ~ and relative paths for the install root and tmp dir
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.InstallRoot, &c.TmpDir} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", path, err)
		}
		path = filepath.Join(home, path[1:])
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", path, err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// Validate rejects unknown enums, unsafe locales and malformed URLs
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InstallRoot) == "" {
		return fmt.Errorf("install_root must not be empty")
	}
	if _, err := catalog.LookupPlatform(c.Platform); err != nil {
		return err
	}
	if err := types.ValidateLocale(c.Locale); err != nil {
		return err
	}
	for _, ch := range c.Channels {
		if _, err := catalog.LookupChannel(ch); err != nil {
			return err
		}
	}

	switch c.Strategy {
	case types.StrategyListing:
		if err := validateBaseURL("listing_base_url", c.ListingBaseURL); err != nil {
			return err
		}
		if c.ReleaseListingTemplate == "" || c.NightlyListingTemplate == "" {
			return fmt.Errorf("listing templates must not be empty")
		}
	case types.StrategyRedirect:
		if err := validateBaseURL("redirect_base_url", c.RedirectBaseURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown strategy %q (expected %s or %s)", c.Strategy, types.StrategyListing, types.StrategyRedirect)
	}

	switch c.AmbiguityPolicy {
	case types.PolicyStrict, types.PolicyLenient:
	default:
		return fmt.Errorf("unknown ambiguity_policy %q (expected %s or %s)", c.AmbiguityPolicy, types.PolicyStrict, types.PolicyLenient)
	}

	if c.UnitTimeout < 0 || c.HTTPTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func validateBaseURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", field, raw)
	}
	return nil
}

// Requests expands the configured channels into one request per channel
func (c *Config) Requests(channels ...catalog.Channel) []types.ArtifactRequest {
	if len(channels) == 0 {
		channels = c.Channels
	}
	if len(channels) == 0 {
		channels = []catalog.Channel{catalog.Release}
	}
	requests := make([]types.ArtifactRequest, 0, len(channels))
	for _, ch := range channels {
		requests = append(requests, types.ArtifactRequest{Channel: ch, Platform: c.Platform, Locale: c.Locale})
	}
	return requests
}
