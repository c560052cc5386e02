package resolver_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	"github.com/flanksource/fxinstall/pkg/resolver"
	"github.com/flanksource/fxinstall/pkg/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func listing(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><h1>Index</h1><ul>")
	b.WriteString(`<li><a href="../">..</a></li>`)
	for _, href := range hrefs {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, href, href)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func upstream() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/pub/firefox/releases/latest/linux-x86_64/en-US/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("firefox-120.0.tar.bz2", "firefox-120.0.tar.bz2.asc", "xpi/"))
	})
	mux.HandleFunc("/pub/firefox/releases/latest/mac/fr/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("Firefox%20120.0.dmg"))
	})
	mux.HandleFunc("/pub/firefox/releases/latest-beta/win64/en-US/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("Firefox Setup 121.0b3.exe", "Firefox Setup 121.0b4.exe"))
	})
	mux.HandleFunc("/pub/firefox/releases/latest-esr/linux-x86_64/en-US/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("Firefox Setup 115.4.0esr.exe"))
	})
	mux.HandleFunc("/pub/firefox/nightly/latest-mozilla-central/", func(w http.ResponseWriter, r *http.Request) {
		prefix := "/pub/firefox/nightly/latest-mozilla-central/"
		fmt.Fprint(w, listing(
			prefix+"firefox-50.0a1.en-US.linux-x86_64.tar.bz2",
			prefix+"firefox-49.0a1.en-US.linux-x86_64.tar.bz2",
			prefix+"firefox-50.0a1.en-US.linux-x86_64.sdk.tar.bz2",
		))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("product") + "/" + q.Get("os") + "/" + q.Get("lang") {
		case "firefox-latest/linux64/en-US":
			http.Redirect(w, r, "/pub/firefox/releases/120.0/linux-x86_64/en-US/firefox-120.0.tar.bz2", http.StatusFound)
		case "firefox-nightly-latest/osx/de":
			http.Redirect(w, r, "https://cdn.example.test/pub/firefox/nightly/2023/11/Firefox%20Nightly%20122.0a1.dmg", http.StatusFound)
		case "firefox-beta-latest/win64/en-US":
			http.Redirect(w, r, "/pub/firefox/releases/121.0b4/win64/en-US/Firefox%20Setup%20121.0b4.exe", http.StatusMovedPermanently)
		case "firefox-esr-latest/linux64/en-US":
			w.WriteHeader(http.StatusFound)
		case "firefox-devedition-latest/win64/en-US":
			http.Redirect(w, r, "/pub/devedition/releases/121.0b4/mac/en-US/Firefox%20121.0b4.dmg", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	})
	return httptest.NewServer(mux)
}

var _ = Describe("Resolver", func() {
	var (
		server *httptest.Server
		cfg    *config.Config
		ctx    context.Context
	)

	BeforeEach(func() {
		server = upstream()
		DeferCleanup(server.Close)

		var err error
		cfg, err = config.LoadDefaultConfig()
		Expect(err).NotTo(HaveOccurred())
		cfg.InstallRoot = GinkgoT().TempDir()
		cfg.ListingBaseURL = server.URL + "/pub/firefox/"
		cfg.RedirectBaseURL = server.URL + "/"
		ctx = context.Background()
	})

	request := func(ch catalog.Channel, p catalog.Platform, locale string) types.ArtifactRequest {
		return types.ArtifactRequest{Channel: ch, Platform: p, Locale: locale}
	}

	Describe("Registry", func() {
		It("should build the configured strategy", func() {
			r, err := resolver.New(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Name()).To(Equal("listing"))

			cfg.Strategy = types.StrategyRedirect
			r, err = resolver.New(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Name()).To(Equal("redirect"))
		})

		It("should reject unknown strategies", func() {
			cfg.Strategy = "torrent"
			_, err := resolver.New(cfg)
			var notFound *resolver.ErrStrategyNotFound
			Expect(err).To(BeAssignableToTypeOf(notFound))
			Expect(err.Error()).To(ContainSubstring("available: listing, redirect"))
		})
	})

	Describe("ListingResolver", func() {
		var r *resolver.ListingResolver

		BeforeEach(func() {
			r = resolver.NewListingResolver(cfg)
		})

		It("should resolve a relative entry against the listing url", func() {
			artifact, err := r.Resolve(ctx, request(catalog.Release, catalog.LinuxX86_64, "en-US"))
			Expect(err).NotTo(HaveOccurred())
			Expect(artifact.URL).To(Equal(server.URL + "/pub/firefox/releases/latest/linux-x86_64/en-US/firefox-120.0.tar.bz2"))
			Expect(artifact.Filename).To(Equal("firefox-120.0.tar.bz2"))
			Expect(artifact.Strategy).To(Equal("listing"))
		})

		It("should unescape the filename", func() {
			artifact, err := r.Resolve(ctx, request(catalog.Release, catalog.Mac, "fr"))
			Expect(err).NotTo(HaveOccurred())
			Expect(artifact.Filename).To(Equal("Firefox 120.0.dmg"))
			Expect(artifact.URL).To(HaveSuffix("/mac/fr/Firefox%20120.0.dmg"))
		})

		It("should resolve absolute paths in flat listings", func() {
			artifact, err := r.Resolve(ctx, request(catalog.Nightly, catalog.LinuxX86_64, "en-US"))
			Expect(err).NotTo(HaveOccurred())
			Expect(artifact.URL).To(Equal(server.URL + "/pub/firefox/nightly/latest-mozilla-central/firefox-50.0a1.en-US.linux-x86_64.tar.bz2"))
		})

		It("should fail on a non-200 listing", func() {
			_, err := r.Resolve(ctx, request(catalog.Release, catalog.Win32, "en-US"))
			var unavailable *types.ErrUpstreamUnavailable
			Expect(err).To(BeAssignableToTypeOf(unavailable))
			Expect(err.(*types.ErrUpstreamUnavailable).StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should fail when no entry has the platform extension", func() {
			_, err := r.Resolve(ctx, request(catalog.ESR, catalog.LinuxX86_64, "en-US"))
			Expect(types.Classify(err)).To(Equal(types.KindNoArtifact))
		})

		It("should apply the ambiguity policy", func() {
			_, err := r.Resolve(ctx, request(catalog.Beta, catalog.Win64, "en-US"))
			Expect(types.Classify(err)).To(Equal(types.KindAmbiguous))

			cfg.AmbiguityPolicy = types.PolicyLenient
			artifact, err := resolver.NewListingResolver(cfg).Resolve(ctx, request(catalog.Beta, catalog.Win64, "en-US"))
			Expect(err).NotTo(HaveOccurred())
			Expect(artifact.Filename).To(Equal("Firefox Setup 121.0b4.exe"))
		})

		It("should reject invalid requests before any network call", func() {
			_, err := r.Resolve(ctx, request("stable", catalog.Win64, "en-US"))
			Expect(types.Classify(err)).To(Equal(types.KindCatalog))
		})

		It("should report transport errors", func() {
			server.Close()
			_, err := r.Resolve(ctx, request(catalog.Release, catalog.LinuxX86_64, "en-US"))
			Expect(types.Classify(err)).To(Equal(types.KindTransport))
		})
	})

	Describe("RedirectResolver", func() {
		var r *resolver.RedirectResolver

		BeforeEach(func() {
			cfg.Strategy = types.StrategyRedirect
			r = resolver.NewRedirectResolver(cfg)
		})

		It("should encode product, os and lang", func() {
			u, err := r.QueryURL(request(catalog.Aurora, catalog.Win32, "pt-BR"))
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Query().Get("product")).To(Equal("firefox-devedition-latest"))
			Expect(u.Query().Get("os")).To(Equal("win"))
			Expect(u.Query().Get("lang")).To(Equal("pt-BR"))
		})

		It("should resolve a relative Location against the request", func() {
			artifact, err := r.Resolve(ctx, request(catalog.Release, catalog.LinuxX86_64, "en-US"))
			Expect(err).NotTo(HaveOccurred())
			Expect(artifact.URL).To(Equal(server.URL + "/pub/firefox/releases/120.0/linux-x86_64/en-US/firefox-120.0.tar.bz2"))
			Expect(artifact.Filename).To(Equal("firefox-120.0.tar.bz2"))
			Expect(artifact.Strategy).To(Equal("redirect"))
		})

		It("should take the unescaped basename of an absolute Location", func() {
			artifact, err := r.Resolve(ctx, request(catalog.Nightly, catalog.Mac, "de"))
			Expect(err).NotTo(HaveOccurred())
			Expect(artifact.URL).To(HavePrefix("https://cdn.example.test/"))
			Expect(artifact.Filename).To(Equal("Firefox Nightly 122.0a1.dmg"))
		})

		It("should only accept 302", func() {
			_, err := r.Resolve(ctx, request(catalog.Beta, catalog.Win64, "en-US"))
			var unavailable *types.ErrUpstreamUnavailable
			Expect(err).To(BeAssignableToTypeOf(unavailable))
			Expect(err.(*types.ErrUpstreamUnavailable).StatusCode).To(Equal(http.StatusMovedPermanently))

			_, err = r.Resolve(ctx, request(catalog.Release, catalog.Win64, "de"))
			Expect(types.Classify(err)).To(Equal(types.KindUpstreamUnavailable))
		})

		It("should fail when the Location header is missing", func() {
			_, err := r.Resolve(ctx, request(catalog.ESR, catalog.LinuxX86_64, "en-US"))
			var missing *types.ErrMissingLocation
			Expect(err).To(BeAssignableToTypeOf(missing))
		})

		It("should reject a target for another platform", func() {
			_, err := r.Resolve(ctx, request(catalog.Aurora, catalog.Win64, "en-US"))
			Expect(types.Classify(err)).To(Equal(types.KindNoArtifact))
		})
	})
})
