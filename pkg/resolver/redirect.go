package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	fxhttp "github.com/flanksource/fxinstall/pkg/http"
	"github.com/flanksource/fxinstall/pkg/types"
)

// ExpectedRedirectStatus is the only status accepted from the latest-build endpoint
const ExpectedRedirectStatus = http.StatusFound

// RedirectResolver asks the latest-build endpoint where the artifact lives without following the redirect
type RedirectResolver struct {
	cfg    *config.Config
	client *http.Client
}

func NewRedirectResolver(cfg *config.Config) *RedirectResolver {
	return &RedirectResolver{
		cfg:    cfg,
		client: fxhttp.GetHttpClient(fxhttp.WithTimeout(cfg.HTTPTimeout), fxhttp.WithoutRedirects()),
	}
}

func (r *RedirectResolver) Name() string {
	return string(types.StrategyRedirect)
}

// QueryURL returns <base>?product=<product>&os=<os>&lang=<locale>
func (r *RedirectResolver) QueryURL(req types.ArtifactRequest) (*url.URL, error) {
	product, err := catalog.ChannelToken(req.Channel, catalog.TokenProduct)
	if err != nil {
		return nil, err
	}
	platform, err := catalog.LookupPlatform(req.Platform)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(r.cfg.RedirectBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect base url %q: %w", r.cfg.RedirectBaseURL, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = url.Values{
		"product": {product},
		"os":      {platform.Upstream},
		"lang":    {req.Locale},
	}.Encode()
	return u, nil
}

func (r *RedirectResolver) Resolve(ctx context.Context, req types.ArtifactRequest) (*types.ResolvedArtifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	platform, _ := catalog.LookupPlatform(req.Platform)

	queryURL, err := r.QueryURL(req)
	if err != nil {
		return nil, err
	}

	logger.V(3).Infof("Querying %s for %s", queryURL, req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, &types.ErrTransport{URL: queryURL.String(), Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != ExpectedRedirectStatus {
		return nil, &types.ErrUpstreamUnavailable{URL: queryURL.String(), StatusCode: resp.StatusCode, Expected: ExpectedRedirectStatus}
	}

	// Location resolves relative targets against the request URL
	target, err := resp.Location()
	if errors.Is(err, http.ErrNoLocation) {
		return nil, &types.ErrMissingLocation{URL: queryURL.String(), StatusCode: resp.StatusCode}
	} else if err != nil {
		return nil, fmt.Errorf("invalid Location header from %s: %w", queryURL, err)
	}

	artifact := &types.ResolvedArtifact{
		URL:      target.String(),
		Filename: filenameFromPath(target.Path),
		Strategy: r.Name(),
	}
	if err := artifact.Validate(platform.Extension); err != nil {
		return nil, err
	}

	logger.V(2).Infof("Resolved %s to %s", req, artifact.URL)
	return artifact, nil
}

func filenameFromPath(p string) string {
	if p == "" || p[len(p)-1] == '/' {
		return ""
	}
	return path.Base(p)
}
