package selector

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// Criteria describes which listing entries are acceptable for a request
type Criteria struct {
	// Extension must match the entry's base name
	Extension *regexp.Regexp
	// Platform is the marker embedded in flat index filenames, e.g. linux-x86_64
	Platform string
	Locale   string
	// Flat listings bundle every platform and locale in one directory
	Flat   bool
	Policy types.AmbiguityPolicy
	// URL of the listing, used in error messages
	URL string
}

// ExtractHrefs returns the de-duplicated href values of every anchor in an HTML document.
// Query strings and fragments are dropped.
func ExtractHrefs(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	var hrefs []string
	var findLinks func(*html.Node)
	findLinks = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					if href := cleanHref(attr.Val); href != "" {
						hrefs = append(hrefs, href)
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findLinks(c)
		}
	}
	findLinks(doc)

	return lo.Uniq(hrefs), nil
}

func cleanHref(href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return href
}

// Filename returns the unescaped base name of an href or URL path
func Filename(href string) string {
	p := href
	if u, err := url.Parse(href); err == nil {
		p = u.Path
	} else if unescaped, err := url.PathUnescape(href); err == nil {
		p = unescaped
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}

// Candidates filters hrefs down to the entries acceptable under c, sorted by filename
func Candidates(hrefs []string, c Criteria) []string {
	matches := lo.Filter(hrefs, func(href string, _ int) bool {
		name := Filename(href)
		if name == "" || (c.Extension != nil && !c.Extension.MatchString(name)) {
			return false
		}
		if !c.Flat {
			return true
		}
		return strings.Contains(name, "."+c.Locale+".") &&
			strings.Contains(name, c.Platform) &&
			!strings.Contains(name, "sdk")
	})

	sort.SliceStable(matches, func(i, j int) bool {
		return Filename(matches[i]) < Filename(matches[j])
	})
	return matches
}

// Select picks exactly one href from a listing body.
// Flat listings take the lexicographically last candidate. Standard listings must have a
// single candidate unless the policy is lenient, in which case the last one wins.
func Select(r io.Reader, c Criteria) (string, error) {
	hrefs, err := ExtractHrefs(r)
	if err != nil {
		return "", err
	}
	return SelectFrom(hrefs, c)
}

// SelectFrom applies Select's rules to an already extracted set of hrefs
func SelectFrom(hrefs []string, c Criteria) (string, error) {
	candidates := Candidates(hrefs, c)
	logger.V(4).Infof("%d of %d listing entries match %s", len(candidates), len(hrefs), pattern(c))

	if len(candidates) == 0 {
		return "", &types.ErrNoArtifact{URL: c.URL, Pattern: pattern(c)}
	}

	last := candidates[len(candidates)-1]
	if c.Flat || len(candidates) == 1 {
		return last, nil
	}

	names := lo.Map(candidates, func(href string, _ int) string { return Filename(href) })
	if c.Policy == types.PolicyLenient {
		logger.Warnf("Listing %s has %d matching entries (%s), using %s", c.URL, len(names), strings.Join(names, ", "), Filename(last))
		return last, nil
	}
	return "", &types.ErrAmbiguousListing{URL: c.URL, Candidates: names}
}

func pattern(c Criteria) string {
	if c.Extension == nil {
		return ""
	}
	if c.Flat {
		return fmt.Sprintf("%s (%s, %s)", c.Extension, c.Platform, c.Locale)
	}
	return c.Extension.String()
}
