package http

import (
	"net/http"
	"time"

	commonshttp "github.com/flanksource/commons/http"
	"github.com/flanksource/commons/logger"
)

// ClientOption configures the HTTP client
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout         time.Duration
	headerLevel     logger.LogLevel
	bodyLevel       logger.LogLevel
	enableLogger    bool
	followRedirects bool
	logRedirects    bool
}

// WithTimeout sets the request timeout; 0 leaves requests bounded only by their context
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithHttpLogging enables HTTP logging with specified levels
func WithHttpLogging(headerLevel, bodyLevel logger.LogLevel) ClientOption {
	return func(c *clientConfig) {
		c.headerLevel = headerLevel
		c.bodyLevel = bodyLevel
		c.enableLogger = true
	}
}

// WithoutRedirects returns redirect responses to the caller instead of following them
func WithoutRedirects() ClientOption {
	return func(c *clientConfig) {
		c.followRedirects = false
	}
}

// WithRedirectLogging logs every hop when redirects are followed
func WithRedirectLogging() ClientOption {
	return func(c *clientConfig) {
		c.logRedirects = true
	}
}

// GetHttpClient returns a configured HTTP client suitable for general use.
// It uses flanksource/commons/http for consistent logging and middleware support.
// Header and body logging is enabled at trace levels when tracing is on.
func GetHttpClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{
		timeout:         30 * time.Second,
		headerLevel:     logger.Trace1,
		bodyLevel:       logger.Trace2,
		enableLogger:    logger.IsTraceEnabled(),
		followRedirects: true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := commonshttp.NewClient().
		Timeout(cfg.timeout)

	if cfg.enableLogger {
		client = client.WithHttpLogging(cfg.headerLevel, cfg.bodyLevel)
	}

	httpClient := &http.Client{
		Transport: client,
		Timeout:   cfg.timeout,
	}

	switch {
	case !cfg.followRedirects:
		httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	case cfg.logRedirects:
		httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			logger.V(3).Infof("Redirect %s -> %s", via[len(via)-1].URL, req.URL)
			return nil
		}
	}

	return httpClient
}
