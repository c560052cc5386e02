package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/fxinstall/pkg/utils"
)

// Extract unpacks an archive into a fresh extractDir and verifies the result is not empty
func Extract(archivePath, extractDir string, t *task.Task) (*Result, error) {
	if t != nil {
		t.SetDescription(fmt.Sprintf("Extracting %s", filepath.Base(archivePath)))
	}

	// Remove extraction directory if it exists to avoid permission issues from previous failed runs
	if _, err := os.Stat(extractDir); err == nil {
		if err := os.RemoveAll(extractDir); err != nil {
			return nil, fmt.Errorf("failed to clean up existing extract directory: %w", err)
		}
	}

	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create extract directory: %w", err)
	}

	// a repeated entry replaces the earlier one, as tar does
	result, err := Unarchive(archivePath, extractDir, WithOverwrite(true))
	if err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	if err := verifyExtraction(extractDir); err != nil {
		return nil, fmt.Errorf("extraction verification failed: %w", err)
	}

	utils.LogExtraction(t, archivePath, extractDir, len(result.Files))
	return result, nil
}

// verifyExtraction verifies that extraction destination exists and is not empty
func verifyExtraction(extractDir string) error {
	info, err := os.Stat(extractDir)
	if err != nil {
		return fmt.Errorf("extraction destination does not exist: %s", extractDir)
	}

	if !info.IsDir() {
		return fmt.Errorf("extraction destination is not a directory: %s", extractDir)
	}

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return fmt.Errorf("failed to read extraction destination: %w", err)
	}

	if len(entries) == 0 {
		return fmt.Errorf("extraction destination is empty: %s", extractDir)
	}
	return nil
}
