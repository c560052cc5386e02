package fxinstall_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/flanksource/fxinstall"
	"github.com/flanksource/fxinstall/mock"
	"github.com/flanksource/fxinstall/pkg/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func tarball(version string) []byte {
	data, err := mock.Tarball(map[string]string{
		"firefox/firefox":         "#!/bin/sh\necho " + version + "\n",
		"firefox/application.ini": "[App]\nVersion=" + version + "\n",
	})
	Expect(err).NotTo(HaveOccurred())
	return data
}

func applicationIni(cfg *fxinstall.Config, channel, locale string) string {
	data, err := os.ReadFile(filepath.Join(cfg.InstallRoot, channel, locale, "firefox", "application.ini"))
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

var _ = Describe("fxinstall", func() {
	var (
		upstream *mock.Upstream
		cfg      *fxinstall.Config
		ctx      context.Context
	)

	BeforeEach(func() {
		upstream = mock.NewUpstream()
		DeferCleanup(upstream.Close)

		var err error
		cfg, err = fxinstall.DefaultConfig()
		Expect(err).NotTo(HaveOccurred())
		cfg.InstallRoot = GinkgoT().TempDir()
		cfg.TmpDir = GinkgoT().TempDir()
		cfg.ListingBaseURL = upstream.ListingBaseURL()
		cfg.RedirectBaseURL = upstream.RedirectBaseURL()
		ctx = context.Background()
	})

	for _, strategy := range []types.Strategy{types.StrategyListing, types.StrategyRedirect} {
		Context("with the "+string(strategy)+" strategy", func() {
			BeforeEach(func() {
				cfg.Strategy = strategy
				upstream.
					WithRelease(fxinstall.Release, fxinstall.LinuxX86_64, "en-US", "firefox-120.0.tar.xz", tarball("120.0")).
					WithRelease(fxinstall.Beta, fxinstall.LinuxX86_64, "en-US", "firefox-121.0b3.tar.xz", tarball("121.0b3")).
					WithRelease(fxinstall.ESR, fxinstall.LinuxX86_64, "en-US", "firefox-115.4.0esr.tar.xz", tarball("115.4.0esr")).
					WithNightly(fxinstall.Nightly, fxinstall.LinuxX86_64, "en-US", "firefox-122.0a1.en-US.linux-x86_64.tar.xz", tarball("122.0a1")).
					WithNightly(fxinstall.Aurora, fxinstall.LinuxX86_64, "en-US", "firefox-121.0a2.en-US.linux-x86_64.tar.xz", tarball("121.0a2"))
			})

			It("installs every channel side by side", func() {
				channels := []fxinstall.Channel{fxinstall.Release, fxinstall.Beta, fxinstall.ESR, fxinstall.Aurora, fxinstall.Nightly}
				summary, err := fxinstall.Install(ctx, cfg, channels, fxinstall.WithTasks(false))
				Expect(err).NotTo(HaveOccurred())
				Expect(summary.Results).To(HaveLen(5))
				Expect(summary.Failed()).To(BeEmpty())

				Expect(applicationIni(cfg, "release", "en-US")).To(ContainSubstring("Version=120.0"))
				Expect(applicationIni(cfg, "beta", "en-US")).To(ContainSubstring("Version=121.0b3"))
				Expect(applicationIni(cfg, "esr", "en-US")).To(ContainSubstring("Version=115.4.0esr"))
				Expect(applicationIni(cfg, "aurora", "en-US")).To(ContainSubstring("Version=121.0a2"))
				Expect(applicationIni(cfg, "nightly", "en-US")).To(ContainSubstring("Version=122.0a1"))

				records, err := fxinstall.Status(cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(records).To(HaveLen(5))
				for _, r := range records {
					Expect(r.Strategy).To(Equal(string(strategy)))
				}
			})

			It("resolves without downloading", func() {
				artifact, err := fxinstall.Resolve(ctx, cfg, fxinstall.Beta)
				Expect(err).NotTo(HaveOccurred())
				Expect(artifact.Filename).To(Equal("firefox-121.0b3.tar.xz"))
				Expect(artifact.URL).To(HavePrefix(upstream.URL))
				Expect(upstream.Downloads()).To(BeZero())
			})

			It("replaces an older install with the new build", func() {
				_, err := fxinstall.Install(ctx, cfg, []fxinstall.Channel{fxinstall.Release}, fxinstall.WithTasks(false))
				Expect(err).NotTo(HaveOccurred())

				upstream.Reset()
				upstream.WithRelease(fxinstall.Release, fxinstall.LinuxX86_64, "en-US", "firefox-120.0.1.tar.xz", tarball("120.0.1"))

				checks, err := fxinstall.Check(ctx, cfg, fxinstall.Release)
				Expect(err).NotTo(HaveOccurred())
				Expect(checks[0].AvailableVersion).To(Equal("120.0.1"))
				Expect(string(checks[0].Status)).To(Equal("update-available"))

				summary, err := fxinstall.Install(ctx, cfg, []fxinstall.Channel{fxinstall.Release}, fxinstall.WithTasks(false))
				Expect(err).NotTo(HaveOccurred())
				Expect(summary.Results[0].Status).To(Equal(fxinstall.InstallStatusInstalled))
				Expect(applicationIni(cfg, "release", "en-US")).To(ContainSubstring("Version=120.0.1"))
			})
		})
	}

	It("installs opaque installers under their upstream name", func() {
		cfg.Platform = fxinstall.Win64
		cfg.Locale = "fr"
		upstream.WithRelease(fxinstall.Release, fxinstall.Win64, "fr", "Firefox Setup 120.0.exe", []byte("MZ"))

		_, err := fxinstall.Install(ctx, cfg, []fxinstall.Channel{fxinstall.Release}, fxinstall.WithTasks(false))
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(cfg.InstallRoot, "release", "fr", "Firefox Setup 120.0.exe")).To(BeARegularFile())
	})

	It("isolates a failing channel from the others", func() {
		upstream.
			WithRelease(fxinstall.Release, fxinstall.LinuxX86_64, "en-US", "firefox-120.0.tar.xz", tarball("120.0")).
			WithFailure("/pub/firefox/releases/latest-beta/linux-x86_64/en-US/", http.StatusServiceUnavailable).
			WithNightly(fxinstall.Nightly, fxinstall.LinuxX86_64, "en-US", "firefox-122.0a1.en-US.linux-x86_64.tar.xz", tarball("122.0a1"))

		channels := []fxinstall.Channel{fxinstall.Release, fxinstall.Beta, fxinstall.Nightly}
		summary, err := fxinstall.Install(ctx, cfg, channels, fxinstall.WithTasks(false))
		Expect(err).To(MatchError("1 of 3 channels failed: beta"))

		failed := summary.Failed()
		Expect(failed).To(HaveLen(1))
		Expect(types.Classify(failed[0].Err)).To(Equal(types.KindUpstreamUnavailable))
		Expect(summary.Succeeded()).To(HaveLen(2))
		Expect(filepath.Join(cfg.InstallRoot, "beta")).NotTo(BeADirectory())
	})

	It("fails ambiguous standard listings under the strict policy", func() {
		upstream.
			WithRelease(fxinstall.Release, fxinstall.LinuxX86_64, "en-US", "firefox-120.0.tar.xz", tarball("120.0")).
			WithListingEntry("/pub/firefox/releases/latest/linux-x86_64/en-US/", "firefox-119.0.tar.xz")

		_, err := fxinstall.Resolve(ctx, cfg, fxinstall.Release)
		Expect(types.Classify(err)).To(Equal(types.KindAmbiguous))

		cfg.AmbiguityPolicy = types.PolicyLenient
		artifact, err := fxinstall.Resolve(ctx, cfg, fxinstall.Release)
		Expect(err).NotTo(HaveOccurred())
		Expect(artifact.Filename).To(Equal("firefox-120.0.tar.xz"))
	})

	It("reports missing builds", func() {
		upstream.WithListingEntry("/pub/firefox/nightly/latest-mozilla-central/", "/pub/firefox/nightly/latest-mozilla-central/firefox-122.0a1.de.linux-x86_64.tar.xz")

		_, err := fxinstall.Resolve(ctx, cfg, fxinstall.Nightly)
		Expect(types.Classify(err)).To(Equal(types.KindNoArtifact))
	})
})
