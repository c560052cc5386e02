package mock

import (
	"archive/tar"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/ulikunitz/xz"
)

// Upstream is an in-memory download mirror that serves directory listings,
// a bouncer style redirect endpoint and the artifacts themselves.
type Upstream struct {
	*httptest.Server

	mu        sync.Mutex
	listings  map[string][]string
	artifacts map[string][]byte
	redirects map[string]string
	failures  map[string]int
	downloads atomic.Int32
}

// NewUpstream starts a new mirror; callers must Close it
func NewUpstream() *Upstream {
	u := &Upstream{
		listings:  make(map[string][]string),
		artifacts: make(map[string][]byte),
		redirects: make(map[string]string),
		failures:  make(map[string]int),
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	return u
}

// ListingBaseURL is the root of the directory listing tree
func (u *Upstream) ListingBaseURL() string {
	return u.URL + "/pub/firefox/"
}

// RedirectBaseURL is the redirect endpoint
func (u *Upstream) RedirectBaseURL() string {
	return u.URL + "/"
}

// Downloads returns the number of artifacts served so far
func (u *Upstream) Downloads() int {
	return int(u.downloads.Load())
}

// WithRelease publishes filename in the per-platform listing of a standard channel
// and points the channel's redirect at it.
func (u *Upstream) WithRelease(ch catalog.Channel, p catalog.Platform, locale, filename string, body []byte) *Upstream {
	chDesc, plDesc := mustLookup(ch, p)
	dir := fmt.Sprintf("/pub/firefox/releases/%s/%s/%s/", chDesc.Listing, plDesc.Listing, locale)
	return u.publish(chDesc, plDesc, locale, dir, url.PathEscape(filename), filename, body)
}

// WithNightly publishes filename in the flat index of a nightly-style channel.
// Entries are linked by absolute path, as the real index does.
func (u *Upstream) WithNightly(ch catalog.Channel, p catalog.Platform, locale, filename string, body []byte) *Upstream {
	chDesc, plDesc := mustLookup(ch, p)
	dir := fmt.Sprintf("/pub/firefox/nightly/%s/", chDesc.Listing)
	return u.publish(chDesc, plDesc, locale, dir, dir+url.PathEscape(filename), filename, body)
}

// WithListingEntry adds an href to a listing without serving anything behind it
func (u *Upstream) WithListingEntry(dir, href string) *Upstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listings[dir] = append(u.listings[dir], href)
	return u
}

// WithFailure makes every request for path answer with status
func (u *Upstream) WithFailure(path string, status int) *Upstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures[path] = status
	return u
}

// Reset drops every listing, artifact and redirect
func (u *Upstream) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listings = make(map[string][]string)
	u.artifacts = make(map[string][]byte)
	u.redirects = make(map[string]string)
	u.failures = make(map[string]int)
}

func (u *Upstream) publish(ch catalog.ChannelDescriptor, p catalog.PlatformDescriptor, locale, dir, href, filename string, body []byte) *Upstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.listings[dir] = append(u.listings[dir], href)
	u.artifacts[dir+filename] = body
	u.redirects[redirectKey(ch.Product, p.Upstream, locale)] = dir + url.PathEscape(filename)
	return u
}

func redirectKey(product, os, lang string) string {
	return product + "/" + os + "/" + lang
}

func mustLookup(ch catalog.Channel, p catalog.Platform) (catalog.ChannelDescriptor, catalog.PlatformDescriptor) {
	chDesc, err := catalog.LookupChannel(ch)
	if err != nil {
		panic(err)
	}
	plDesc, err := catalog.LookupPlatform(p)
	if err != nil {
		panic(err)
	}
	return chDesc, plDesc
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	status, failing := u.failures[r.URL.Path]
	hrefs, isListing := u.listings[r.URL.Path]
	body, isArtifact := u.artifacts[r.URL.Path]
	location, isRedirect := u.redirects[redirectKey(r.URL.Query().Get("product"), r.URL.Query().Get("os"), r.URL.Query().Get("lang"))]
	hrefs = append([]string(nil), hrefs...)
	u.mu.Unlock()

	switch {
	case failing:
		http.Error(w, http.StatusText(status), status)
	case isListing:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(Listing(r.URL.Path, hrefs...)))
	case isArtifact:
		u.downloads.Add(1)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(body)
	case r.URL.Path == "/" && isRedirect:
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusFound)
	default:
		http.NotFound(w, r)
	}
}

// Listing renders an HTML directory index containing hrefs
func Listing(dir string, hrefs ...string) string {
	sorted := append([]string(nil), hrefs...)
	sort.Strings(sorted)

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>Directory Listing: %s</title></head><body>\n", dir)
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<table>\n", dir)
	fmt.Fprintf(&b, "<tr><td>Dir</td><td><a href=\"%s\">..</a></td></tr>\n", path.Dir(strings.TrimSuffix(dir, "/"))+"/")
	for _, href := range sorted {
		name, err := url.PathUnescape(path.Base(href))
		if err != nil {
			name = href
		}
		fmt.Fprintf(&b, "<tr><td>File</td><td><a href=\"%s\">%s</a></td><td>64M</td></tr>\n", href, name)
	}
	b.WriteString("</table>\n</body></html>\n")
	return b.String()
}

// Tarball builds a tar.xz archive holding files, keyed by slash separated path.
// Entries named firefox are marked executable.
func Tarball(files map[string]string) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(xw)
	for _, name := range names {
		mode := int64(0644)
		if path.Base(name) == "firefox" {
			mode = 0755
		}
		body := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: mode, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := xw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
