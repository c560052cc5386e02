package template

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	"github.com/flanksource/gomplate/v3"
)

// RenderTemplate renders a template string using flanksource/gomplate
func RenderTemplate(templateStr string, data map[string]interface{}) (string, error) {
	result, err := gomplate.RunTemplate(data, gomplate.Template{
		Template: templateStr,
	})
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return result, nil
}

// ListingData returns the variables available to listing templates
func ListingData(base string, channel catalog.ChannelDescriptor, platform catalog.PlatformDescriptor, locale string) map[string]interface{} {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return map[string]interface{}{
		"base":     base,
		"channel":  channel.Listing,
		"product":  channel.Product,
		"platform": platform.Listing,
		"os":       platform.Upstream,
		"locale":   locale,
	}
}

// ListingURL renders the directory listing URL for a request.
// Flat channels (nightly, aurora) use a single index directory for every platform and locale.
func ListingURL(cfg *config.Config, channel catalog.ChannelDescriptor, platform catalog.PlatformDescriptor, locale string) (*url.URL, error) {
	tmpl := cfg.ReleaseListingTemplate
	if channel.Flat {
		tmpl = cfg.NightlyListingTemplate
	}

	rendered, err := RenderTemplate(tmpl, ListingData(cfg.ListingBaseURL, channel, platform, locale))
	if err != nil {
		return nil, fmt.Errorf("failed to render listing url for %s: %w", channel.Channel, err)
	}

	u, err := url.Parse(strings.TrimSpace(rendered))
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %q: %w", rendered, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("listing url %q is not absolute", rendered)
	}
	return u, nil
}
