package extract

import (
	"path/filepath"
	"strings"
)

var archiveExtensions = []string{".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.bz2", ".tbz2", ".tar"}

// GetExtension returns the file extension from a URL or filename, keeping compound tar suffixes
func GetExtension(url string) string {
	// Remove query parameters from URLs
	if idx := strings.Index(url, "?"); idx != -1 {
		url = url[:idx]
	}

	lower := strings.ToLower(url)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return filepath.Ext(lower)
}

// IsArchive returns true if the file is a tarball Unarchive can extract
func IsArchive(path string) bool {
	ext := GetExtension(path)
	for _, known := range archiveExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
