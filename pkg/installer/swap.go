package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/download"
	"github.com/flanksource/fxinstall/pkg/extract"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/flanksource/fxinstall/pkg/utils"
	"github.com/google/uuid"
)

// rename is swapped in tests to simulate filesystem failures
var rename = os.Rename

func stagingPrefix(target types.InstallTarget) string {
	return "." + target.Name() + ".staging-"
}

func backupPrefix(target types.InstallTarget) string {
	return "." + target.Name() + ".old-"
}

// removeStale deletes staging and backup directories left behind by interrupted runs
func removeStale(target types.InstallTarget, t *task.Task) {
	entries, err := os.ReadDir(target.Parent())
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, stagingPrefix(target)) || strings.HasPrefix(name, backupPrefix(target)) {
			path := filepath.Join(target.Parent(), name)
			utils.Debugf(t, "Removing stale %s", utils.LogPath(path))
			if err := os.RemoveAll(path); err != nil {
				utils.Warnf(t, "Failed to remove stale %s: %v", utils.LogPath(path), err)
			}
		}
	}
}

// stage populates a new sibling directory of target with the fetched artifact.
// Archives are extracted, other artifacts are moved in under their resolved filename.
func stage(fetched *download.Result, target types.InstallTarget, platform catalog.PlatformDescriptor, cleanup *CleanupManager, t *task.Task) (string, error) {
	if platform.Archive && !extract.IsArchive(fetched.Filename) {
		return "", &types.ErrInstall{Target: target.Directory, Op: "extract", Err: &extract.ErrUnsupportedArchive{Path: fetched.Filename}}
	}

	if err := os.MkdirAll(target.Parent(), 0755); err != nil {
		return "", &types.ErrInstall{Target: target.Directory, Op: "create parent", Err: err}
	}

	staging, err := os.MkdirTemp(target.Parent(), stagingPrefix(target)+"*")
	if err != nil {
		return "", &types.ErrInstall{Target: target.Directory, Op: "create staging", Err: err}
	}
	cleanup.AddDirectory(staging)

	if platform.Archive {
		if _, err := extract.Extract(fetched.Path, staging, t); err != nil {
			return "", &types.ErrInstall{Target: target.Directory, Op: "extract", Err: err}
		}
	} else {
		dest := filepath.Join(staging, fetched.Filename)
		if err := moveFile(fetched.Path, dest); err != nil {
			return "", &types.ErrInstall{Target: target.Directory, Op: "move", Err: err}
		}
		if err := os.Chmod(dest, 0755); err != nil {
			return "", &types.ErrInstall{Target: target.Directory, Op: "chmod", Err: err}
		}
		utils.Debugf(t, "Staged %s", utils.FormatFileInfo(dest))
	}

	// MkdirTemp creates 0700
	if err := os.Chmod(staging, 0755); err != nil {
		return "", &types.ErrInstall{Target: target.Directory, Op: "chmod", Err: err}
	}
	return staging, nil
}

// swap replaces target with staging. An existing target is first renamed aside and is
// restored if the final rename fails; it is only deleted once the new tree is in place.
func swap(staging string, target types.InstallTarget, t *task.Task) error {
	backup := ""
	if _, err := os.Lstat(target.Directory); err == nil {
		backup = filepath.Join(target.Parent(), backupPrefix(target)+uuid.NewString()[:8])
		if err := rename(target.Directory, backup); err != nil {
			return &types.ErrInstall{Target: target.Directory, Op: "backup", Err: err}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return &types.ErrInstall{Target: target.Directory, Op: "stat", Err: err}
	}

	if err := rename(staging, target.Directory); err != nil {
		if backup != "" {
			if rbErr := rename(backup, target.Directory); rbErr != nil {
				return &types.ErrInstall{Target: target.Directory, Op: "swap", Err: fmt.Errorf("%w (rollback failed, previous install kept at %s: %v)", err, backup, rbErr)}
			}
			utils.Warnf(t, "Restored previous install at %s", utils.LogPath(target.Directory))
		}
		return &types.ErrInstall{Target: target.Directory, Op: "swap", Err: err}
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			utils.Warnf(t, "Failed to remove previous install %s: %v", utils.LogPath(backup), err)
		}
	}
	return nil
}

// moveFile renames src to dst, copying when they are on different filesystems
func moveFile(src, dst string) error {
	if err := rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}
