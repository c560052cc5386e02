package catalog

import (
	"regexp"
	"strings"
)

// Platform represents a target OS/architecture combination for which distinct
// build artifacts are published.
type Platform string

const (
	LinuxX86_64 Platform = "linux-x86_64"
	LinuxI686   Platform = "linux-i686"
	Mac         Platform = "mac"
	Win32       Platform = "win32"
	Win64       Platform = "win64"
)

// DefaultPlatform is used when no platform is configured.
const DefaultPlatform = LinuxX86_64

// PlatformDescriptor maps a platform to its artifact format and upstream tokens.
type PlatformDescriptor struct {
	Platform Platform `json:"platform" yaml:"platform"`
	// Extension matches the trailing characters of a valid artifact filename
	Extension *regexp.Regexp `json:"-" yaml:"-"`
	// Upstream is the os identifier understood by the redirect resolver
	Upstream string `json:"upstream" yaml:"upstream"`
	// Listing is the platform directory name in the release tree and the
	// platform marker embedded in flat index filenames
	Listing string `json:"listing" yaml:"listing"`
	// Archive platforms ship a tarball that is extracted into the install
	// target; the others ship an opaque installer that is copied as is.
	Archive bool `json:"archive" yaml:"archive"`
}

var (
	tarballExtension   = regexp.MustCompile(`\.tar\.(bz2|xz)$`)
	dmgExtension       = regexp.MustCompile(`\.dmg$`)
	installerExtension = regexp.MustCompile(`\.exe$`)
)

var platforms = map[Platform]PlatformDescriptor{
	LinuxX86_64: {Platform: LinuxX86_64, Extension: tarballExtension, Upstream: "linux64", Listing: "linux-x86_64", Archive: true},
	LinuxI686:   {Platform: LinuxI686, Extension: tarballExtension, Upstream: "linux", Listing: "linux-i686", Archive: true},
	Mac:         {Platform: Mac, Extension: dmgExtension, Upstream: "osx", Listing: "mac"},
	Win32:       {Platform: Win32, Extension: installerExtension, Upstream: "win", Listing: "win32"},
	Win64:       {Platform: Win64, Extension: installerExtension, Upstream: "win64", Listing: "win64"},
}

var platformOrder = []Platform{LinuxX86_64, LinuxI686, Mac, Win32, Win64}

// Platforms returns every supported platform in display order.
func Platforms() []Platform {
	return append([]Platform(nil), platformOrder...)
}

// LookupPlatform returns the descriptor for a platform.
func LookupPlatform(p Platform) (PlatformDescriptor, error) {
	desc, ok := platforms[p]
	if !ok {
		return PlatformDescriptor{}, newErrUnknownPlatform(string(p))
	}
	return desc, nil
}

// ParsePlatform converts user input into a Platform, accepting the upstream
// os identifiers and common aliases (linux64, osx, darwin, win, ...).
func ParsePlatform(name string) (Platform, error) {
	p := Platform(normalizePlatform(name))
	if _, ok := platforms[p]; !ok {
		return "", newErrUnknownPlatform(name)
	}
	return p, nil
}

// IsArchive reports whether artifacts for the platform are extracted on install.
func (p Platform) IsArchive() bool {
	return platforms[p].Archive
}

func (p Platform) String() string {
	return string(p)
}

func normalizePlatform(name string) string {
	switch s := strings.ToLower(strings.TrimSpace(name)); s {
	case "linux64", "linux-amd64", "linux-x64":
		return string(LinuxX86_64)
	case "linux", "linux32", "linux-386", "linux-i386":
		return string(LinuxI686)
	case "osx", "macos", "darwin":
		return string(Mac)
	case "win", "windows-386":
		return string(Win32)
	case "windows", "windows-amd64":
		return string(Win64)
	default:
		return s
	}
}
