package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flanksource/fxinstall/pkg/catalog"
)

// ErrorKind groups failures for per-channel reporting
type ErrorKind string

const (
	KindCatalog             ErrorKind = "catalog"
	KindUpstreamUnavailable ErrorKind = "upstream-unavailable"
	KindNoArtifact          ErrorKind = "no-artifact"
	KindAmbiguous           ErrorKind = "resolution-ambiguous"
	KindTransport           ErrorKind = "transport"
	KindInstallation        ErrorKind = "installation"
	KindUnknown             ErrorKind = "error"
)

// ErrUpstreamUnavailable is returned when a listing, resolver or download
// request does not answer with the expected status
type ErrUpstreamUnavailable struct {
	URL        string
	StatusCode int
	Expected   int
}

func (e *ErrUpstreamUnavailable) Error() string {
	expected := e.Expected
	if expected == 0 {
		expected = http.StatusOK
	}
	return fmt.Sprintf("upstream unavailable: %s returned HTTP %d (expected %d)", e.URL, e.StatusCode, expected)
}

// ErrMissingLocation is returned when a redirect response has no Location header
type ErrMissingLocation struct {
	URL        string
	StatusCode int
}

func (e *ErrMissingLocation) Error() string {
	return fmt.Sprintf("redirect from %s (HTTP %d) has no Location header", e.URL, e.StatusCode)
}

// ErrNoArtifact is returned when a listing contains no matching artifact
type ErrNoArtifact struct {
	URL     string
	Pattern string
}

func (e *ErrNoArtifact) Error() string {
	msg := "no download available"
	if e.Pattern != "" {
		msg += " matching " + e.Pattern
	}
	if e.URL != "" {
		msg += " at " + e.URL
	}
	return msg
}

// ErrAmbiguousListing is returned when a standard channel listing matches more than one artifact
type ErrAmbiguousListing struct {
	URL        string
	Candidates []string
}

func (e *ErrAmbiguousListing) Error() string {
	msg := fmt.Sprintf("ambiguous listing: %d candidates", len(e.Candidates))
	if e.URL != "" {
		msg += " at " + e.URL
	}
	return msg + ": " + strings.Join(e.Candidates, ", ")
}

// ErrInvalidArtifact is returned when a resolved filename does not match the platform's format
type ErrInvalidArtifact struct {
	Filename string
	URL      string
	Pattern  string
}

func (e *ErrInvalidArtifact) Error() string {
	if e.Filename == "" {
		return "resolved artifact has no filename: " + e.URL
	}
	return fmt.Sprintf("resolved artifact %s does not match %s", e.Filename, e.Pattern)
}

// ErrTransport wraps network failures, including streams cut off mid-download
type ErrTransport struct {
	URL string
	Err error
}

func (e *ErrTransport) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// ErrInstall wraps filesystem and extraction failures in the installer
type ErrInstall struct {
	Target string
	Op     string
	Err    error
}

func (e *ErrInstall) Error() string {
	return fmt.Sprintf("install %s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *ErrInstall) Unwrap() error {
	return e.Err
}

// Classify maps an error onto the failure taxonomy
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var (
		unknownChannel  *catalog.ErrUnknownChannel
		unknownPlatform *catalog.ErrUnknownPlatform
		upstream        *ErrUpstreamUnavailable
		missingLocation *ErrMissingLocation
		noArtifact      *ErrNoArtifact
		invalidArtifact *ErrInvalidArtifact
		ambiguous       *ErrAmbiguousListing
		transport       *ErrTransport
		install         *ErrInstall
	)

	switch {
	case errors.As(err, &unknownChannel), errors.As(err, &unknownPlatform):
		return KindCatalog
	case errors.As(err, &upstream), errors.As(err, &missingLocation):
		return KindUpstreamUnavailable
	case errors.As(err, &noArtifact), errors.As(err, &invalidArtifact):
		return KindNoArtifact
	case errors.As(err, &ambiguous):
		return KindAmbiguous
	case errors.As(err, &transport):
		return KindTransport
	case errors.As(err, &install):
		return KindInstallation
	default:
		return KindUnknown
	}
}
