package selector_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/selector"
	"github.com/flanksource/fxinstall/pkg/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func listing(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table>\n")
	for _, name := range names {
		b.WriteString(`<tr><td><a href="` + name + `">` + name + "</a></td></tr>\n")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func fixture(name string) *os.File {
	f, err := os.Open(filepath.Join("testdata", name))
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(f.Close)
	return f
}

func criteria(p catalog.Platform, locale string, flat bool) selector.Criteria {
	desc, err := catalog.LookupPlatform(p)
	Expect(err).NotTo(HaveOccurred())
	return selector.Criteria{
		Extension: desc.Extension,
		Platform:  desc.Listing,
		Locale:    locale,
		Flat:      flat,
		Policy:    types.PolicyStrict,
		URL:       "https://ftp.mozilla.org/pub/firefox/",
	}
}

var _ = Describe("Selector", func() {
	Describe("ExtractHrefs", func() {
		It("should collect every anchor once without query or fragment", func() {
			hrefs, err := selector.ExtractHrefs(fixture("release.html"))
			Expect(err).NotTo(HaveOccurred())
			Expect(hrefs).To(Equal([]string{"../", "firefox-120.0.tar.bz2", "firefox-120.0.tar.bz2.asc", "xpi/"}))
		})

		It("should return nothing for a page without links", func() {
			hrefs, err := selector.ExtractHrefs(strings.NewReader("<html><body>empty</body></html>"))
			Expect(err).NotTo(HaveOccurred())
			Expect(hrefs).To(BeEmpty())
		})
	})

	Describe("Filename", func() {
		DescribeTable("should return the unescaped base name",
			func(href, expected string) {
				Expect(selector.Filename(href)).To(Equal(expected))
			},
			Entry("relative", "firefox-120.0.tar.bz2", "firefox-120.0.tar.bz2"),
			Entry("absolute path", "/pub/firefox/nightly/firefox-50.0a1.en-US.mac.dmg", "firefox-50.0a1.en-US.mac.dmg"),
			Entry("escaped", "Firefox%20Setup%20120.0.exe", "Firefox Setup 120.0.exe"),
			Entry("absolute url", "https://download-installer.cdn.mozilla.net/pub/firefox/releases/120.0/mac/en-US/Firefox%20120.0.dmg", "Firefox 120.0.dmg"),
			Entry("directory", "xpi/", ""),
		)
	})

	Context("with a flat nightly listing", func() {
		It("should pick the newest build and skip the sdk", func() {
			href, err := selector.Select(fixture("nightly.html"), criteria(catalog.LinuxX86_64, "en-US", true))
			Expect(err).NotTo(HaveOccurred())
			Expect(selector.Filename(href)).To(Equal("firefox-50.0a1.en-US.linux-x86_64.tar.bz2"))
			Expect(href).To(HavePrefix("/pub/firefox/nightly/latest-mozilla-central/"))
		})

		It("should select from the three documented entries", func() {
			body := listing(
				"firefox-50.0a1.en-US.linux-x86_64.tar.bz2",
				"firefox-49.0a1.en-US.linux-x86_64.tar.bz2",
				"firefox-50.0a1.en-US.linux-x86_64.sdk.tar.bz2",
			)
			href, err := selector.Select(strings.NewReader(body), criteria(catalog.LinuxX86_64, "en-US", true))
			Expect(err).NotTo(HaveOccurred())
			Expect(href).To(Equal("firefox-50.0a1.en-US.linux-x86_64.tar.bz2"))
		})

		It("should match the locale as a whole segment", func() {
			href, err := selector.Select(fixture("nightly.html"), criteria(catalog.LinuxX86_64, "de", true))
			Expect(err).NotTo(HaveOccurred())
			Expect(selector.Filename(href)).To(Equal("firefox-50.0a1.de.linux-x86_64.tar.bz2"))

			_, err = selector.Select(fixture("nightly.html"), criteria(catalog.LinuxX86_64, "en", true))
			Expect(types.Classify(err)).To(Equal(types.KindNoArtifact))
		})

		DescribeTable("should respect the platform marker",
			func(p catalog.Platform, expected string) {
				href, err := selector.Select(fixture("nightly.html"), criteria(p, "en-US", true))
				Expect(err).NotTo(HaveOccurred())
				Expect(selector.Filename(href)).To(Equal(expected))
			},
			Entry("linux-i686", catalog.LinuxI686, "firefox-50.0a1.en-US.linux-i686.tar.bz2"),
			Entry("mac", catalog.Mac, "firefox-50.0a1.en-US.mac.dmg"),
			Entry("win32", catalog.Win32, "firefox-50.0a1.en-US.win32.installer.exe"),
			Entry("win64", catalog.Win64, "firefox-50.0a1.en-US.win64.installer.exe"),
		)
	})

	Context("with a standard listing", func() {
		It("should return the single matching entry", func() {
			href, err := selector.Select(fixture("release.html"), criteria(catalog.LinuxX86_64, "en-US", false))
			Expect(err).NotTo(HaveOccurred())
			Expect(href).To(Equal("firefox-120.0.tar.bz2"))
		})

		It("should fail with no artifact when nothing matches", func() {
			_, err := selector.Select(fixture("release.html"), criteria(catalog.Win64, "en-US", false))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no download available"))
			Expect(types.Classify(err)).To(Equal(types.KindNoArtifact))
		})

		Context("and several matches", func() {
			body := listing("Firefox Setup 120.0.exe", "Firefox Setup 119.0.exe", "Firefox Setup Stub 120.0.exe")

			It("should fail under the strict policy", func() {
				_, err := selector.Select(strings.NewReader(body), criteria(catalog.Win64, "en-US", false))
				var ambiguous *types.ErrAmbiguousListing
				Expect(err).To(BeAssignableToTypeOf(ambiguous))
				Expect(err.(*types.ErrAmbiguousListing).Candidates).To(Equal([]string{
					"Firefox Setup 119.0.exe", "Firefox Setup 120.0.exe", "Firefox Setup Stub 120.0.exe",
				}))
			})

			It("should take the lexicographically last under the lenient policy", func() {
				c := criteria(catalog.Win64, "en-US", false)
				c.Policy = types.PolicyLenient
				href, err := selector.Select(strings.NewReader(body), c)
				Expect(err).NotTo(HaveOccurred())
				Expect(href).To(Equal("Firefox Setup Stub 120.0.exe"))
			})
		})
	})

	Describe("platform extensions", func() {
		all := listing(
			"firefox-120.0.tar.bz2", "firefox-121.0.tar.xz", "Firefox 120.0.dmg",
			"Firefox Setup 120.0.exe", "firefox-120.0.zip", "firefox-120.0.tar.bz2.asc",
		)

		It("should never return another platform's artifact", func() {
			for _, p := range catalog.Platforms() {
				desc, err := catalog.LookupPlatform(p)
				Expect(err).NotTo(HaveOccurred())

				hrefs, err := selector.ExtractHrefs(strings.NewReader(all))
				Expect(err).NotTo(HaveOccurred())
				for _, href := range selector.Candidates(hrefs, criteria(p, "en-US", false)) {
					Expect(desc.Extension.MatchString(href)).To(BeTrue(), "%s returned %s", p, href)
				}

				c := criteria(p, "en-US", false)
				c.Policy = types.PolicyLenient
				href, err := selector.SelectFrom(hrefs, c)
				Expect(err).NotTo(HaveOccurred())
				Expect(desc.Extension.MatchString(selector.Filename(href))).To(BeTrue())
			}
		})
	})
})
