package platform

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/flanksource/fxinstall/pkg/catalog"
)

// Auto selects the platform of the running host
const Auto = "auto"

// Detect maps a Go os/arch pair to the build platform that runs on it.
// 64-bit ARM hosts get the x86_64 build on linux and win64 on windows, matching what upstream
// offers through emulation; macOS builds are universal.
func Detect(goos, goarch string) (catalog.Platform, error) {
	switch goos {
	case "darwin":
		return catalog.Mac, nil
	case "linux":
		switch goarch {
		case "amd64", "arm64":
			return catalog.LinuxX86_64, nil
		case "386":
			return catalog.LinuxI686, nil
		}
	case "windows":
		switch goarch {
		case "amd64", "arm64":
			return catalog.Win64, nil
		case "386":
			return catalog.Win32, nil
		}
	}
	return "", fmt.Errorf("no build available for %s/%s", goos, goarch)
}

// Current returns the platform of the running host
func Current() (catalog.Platform, error) {
	return Detect(runtime.GOOS, runtime.GOARCH)
}

// Parse accepts a platform name, one of its aliases, or "auto" (also the empty string)
func Parse(name string) (catalog.Platform, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, Auto) {
		return Current()
	}
	return catalog.ParsePlatform(name)
}
