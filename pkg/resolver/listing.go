package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	fxhttp "github.com/flanksource/fxinstall/pkg/http"
	"github.com/flanksource/fxinstall/pkg/selector"
	"github.com/flanksource/fxinstall/pkg/template"
	"github.com/flanksource/fxinstall/pkg/types"
)

// maxListingSize caps how much of a directory listing is parsed
const maxListingSize = 16 << 20

// ListingResolver scans an HTML directory listing for the artifact
type ListingResolver struct {
	cfg    *config.Config
	client *http.Client
}

func NewListingResolver(cfg *config.Config) *ListingResolver {
	return &ListingResolver{
		cfg:    cfg,
		client: fxhttp.GetHttpClient(fxhttp.WithTimeout(cfg.HTTPTimeout), fxhttp.WithRedirectLogging()),
	}
}

func (r *ListingResolver) Name() string {
	return string(types.StrategyListing)
}

func (r *ListingResolver) Resolve(ctx context.Context, req types.ArtifactRequest) (*types.ResolvedArtifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	channel, _ := catalog.LookupChannel(req.Channel)
	platform, _ := catalog.LookupPlatform(req.Platform)

	listingURL, err := template.ListingURL(r.cfg, channel, platform, req.Locale)
	if err != nil {
		return nil, err
	}

	logger.V(3).Infof("Scanning %s for %s", listingURL, req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &types.ErrTransport{URL: listingURL.String(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.ErrUpstreamUnavailable{URL: listingURL.String(), StatusCode: resp.StatusCode, Expected: http.StatusOK}
	}

	hrefs, err := selector.ExtractHrefs(io.LimitReader(resp.Body, maxListingSize))
	if err != nil {
		return nil, &types.ErrTransport{URL: listingURL.String(), Err: err}
	}

	href, err := selector.SelectFrom(hrefs, selector.Criteria{
		Extension: platform.Extension,
		Platform:  platform.Listing,
		Locale:    req.Locale,
		Flat:      channel.Flat,
		Policy:    r.cfg.AmbiguityPolicy,
		URL:       listingURL.String(),
	})
	if err != nil {
		return nil, err
	}

	// the listing may have been served from a redirected location
	base := listingURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	ref, err := url.Parse(href)
	if err != nil {
		ref = &url.URL{Path: href}
	}

	artifact := &types.ResolvedArtifact{
		URL:      base.ResolveReference(ref).String(),
		Filename: selector.Filename(href),
		Strategy: r.Name(),
	}
	if err := artifact.Validate(platform.Extension); err != nil {
		return nil, err
	}

	logger.V(2).Infof("Resolved %s to %s", req, artifact.URL)
	return artifact, nil
}
