package installer

import (
	"errors"
	"os"
	"sync"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/fxinstall/pkg/utils"
)

// CleanupManager removes the temporary files and directories of one unit of work
type CleanupManager struct {
	mu          sync.Mutex
	files       []string
	directories []string
	task        *task.Task
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(t *task.Task) *CleanupManager {
	return &CleanupManager{
		task:        t,
		files:       make([]string, 0),
		directories: make([]string, 0),
	}
}

// AddFile adds a file to be cleaned up
func (cm *CleanupManager) AddFile(path string) {
	if path == "" {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.files = append(cm.files, path)
}

// AddDirectory adds a directory to be cleaned up
func (cm *CleanupManager) AddDirectory(dirpath string) {
	if dirpath == "" {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.directories = append(cm.directories, dirpath)
}

// Paths returns everything registered so far
func (cm *CleanupManager) Paths() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return append(append([]string{}, cm.directories...), cm.files...)
}

// Cleanup removes every registered path. Paths that no longer exist, because they
// were renamed into place, are ignored.
func (cm *CleanupManager) Cleanup() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Clean up directories first (they may contain files)
	for _, dir := range cm.directories {
		if err := os.RemoveAll(dir); err != nil {
			utils.Warnf(cm.task, "Failed to clean up directory %s: %v", utils.LogPath(dir), err)
		}
	}

	for _, file := range cm.files {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			utils.Warnf(cm.task, "Failed to clean up file %s: %v", utils.LogPath(file), err)
		}
	}

	cm.files = cm.files[:0]
	cm.directories = cm.directories[:0]
}
