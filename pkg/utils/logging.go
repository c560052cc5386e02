package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/flanksource/clicky/task"
	"github.com/flanksource/commons/logger"
)

// Infof logs to the task when there is one, otherwise to the global logger
func Infof(t *task.Task, format string, args ...any) {
	if t != nil {
		t.Infof(format, args...)
		return
	}
	logger.Infof(format, args...)
}

// Warnf logs a warning to the task when there is one, otherwise to the global logger
func Warnf(t *task.Task, format string, args ...any) {
	if t != nil {
		t.Warnf(format, args...)
		return
	}
	logger.Warnf(format, args...)
}

// Debugf logs at verbose level 3
func Debugf(t *task.Task, format string, args ...any) {
	if t != nil {
		t.V(3).Infof(format, args...)
		return
	}
	logger.V(3).Infof(format, args...)
}

// RelativePath converts an absolute path to a relative path from the current working directory
func RelativePath(absPath string) string {
	if absPath == "" {
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Base(absPath)
	}

	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil || len(relPath) > len(absPath) {
		return absPath
	}
	return relPath
}

// LogPath returns a clean path for logging
func LogPath(path string) string {
	if path == "" {
		return ""
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return RelativePath(absPath)
}

// FormatFileInfo returns the base name with size and mode, e.g. "firefox (2.1 MiB, 755)"
func FormatFileInfo(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return filepath.Base(path)
	}
	if info.IsDir() {
		return fmt.Sprintf("%s (dir)", filepath.Base(path))
	}
	return fmt.Sprintf("%s (%s, %o)", filepath.Base(path), humanize.IBytes(uint64(info.Size())), info.Mode()&0777)
}

// ShortenURL drops the scheme and collapses long paths to host/.../file
func ShortenURL(url string) string {
	if url == "" {
		return ""
	}

	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	if len(url) > 60 {
		parts := strings.Split(url, "/")
		if len(parts) > 2 {
			return fmt.Sprintf("%s/.../%s", parts[0], parts[len(parts)-1])
		}
	}
	return url
}

// LogOperation executes fn and logs start and completion against the task
func LogOperation(t *task.Task, operation, target string, fn func() error) error {
	if t == nil {
		return fn()
	}

	t.SetDescription(fmt.Sprintf("%s %s...", operation, target))

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err != nil {
		t.Errorf("%s failed: %v", operation, err)
		return err
	}

	if duration > 500*time.Millisecond {
		t.Infof("%s completed (%v)", operation, duration.Round(10*time.Millisecond))
	} else {
		t.V(3).Infof("%s completed", operation)
	}
	return nil
}

// LogDownloadStart logs the start of a download
func LogDownloadStart(t *task.Task, url, filename string) {
	if t == nil {
		logger.V(2).Infof("Downloading %s", ShortenURL(url))
		return
	}
	t.Infof("Downloading from %s", ShortenURL(url))
	t.SetDescription(fmt.Sprintf("Downloading %s", filename))
}

// LogExtraction logs extraction operations with file count
func LogExtraction(t *task.Task, archivePath, extractDir string, fileCount int) {
	Infof(t, "Extracted %s (%d files) to %s", filepath.Base(archivePath), fileCount, LogPath(extractDir))
}
