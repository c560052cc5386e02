package extract

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/commons/logger"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ErrIllegalPath is returned for entries that would be written outside the destination
type ErrIllegalPath struct {
	Name string
	Dest string
}

func (e *ErrIllegalPath) Error() string {
	return fmt.Sprintf("illegal path in archive: %s escapes %s", e.Name, e.Dest)
}

// ErrUnsupportedArchive is returned for files Unarchive has no decoder for
type ErrUnsupportedArchive struct {
	Path string
}

func (e *ErrUnsupportedArchive) Error() string {
	return "unsupported archive format: " + filepath.Base(e.Path)
}

// Result lists what was extracted
type Result struct {
	// Files are the regular files written, relative to the destination
	Files    []string
	Dirs     int
	Symlinks int
	Links    int
}

// UnarchiveOption is a functional option for Unarchive
type UnarchiveOption func(*unarchiveConfig)

type unarchiveConfig struct {
	overwrite bool
}

// WithOverwrite replaces existing entries instead of failing on them
func WithOverwrite(overwrite bool) UnarchiveOption {
	return func(c *unarchiveConfig) {
		c.overwrite = overwrite
	}
}

// Unarchive extracts a .tar, .tar.gz, .tar.xz or .tar.bz2 archive into dest.
// Directories and executables are created 0755; other files keep their mode, owner-readable at least.
// No entry is ever written outside dest.
func Unarchive(archive, dest string, opts ...UnarchiveOption) (*Result, error) {
	config := &unarchiveConfig{}
	for _, opt := range opts {
		opt(config)
	}

	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	reader, closer, err := decompress(archive, bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, err
	}
	realDest, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return nil, err
	}

	x := &extractor{dest: filepath.Clean(dest), realDest: realDest, overwrite: config.overwrite, result: &Result{}}
	if err := x.extract(tar.NewReader(reader)); err != nil {
		return nil, err
	}
	return x.result, nil
}

func decompress(archive string, r io.Reader) (io.Reader, io.Closer, error) {
	switch GetExtension(archive) {
	case ".tar.gz", ".tgz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, gz, nil
	case ".tar.xz", ".txz":
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open xz stream: %w", err)
		}
		return xzr, nil, nil
	case ".tar.bz2", ".tbz2":
		return bzip2.NewReader(r), nil, nil
	case ".tar":
		return r, nil, nil
	default:
		return nil, nil, &ErrUnsupportedArchive{Path: archive}
	}
}

type extractor struct {
	dest      string
	realDest  string
	overwrite bool
	result    *Result
}

func (x *extractor) extract(tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		target, err := x.target(hdr.Name)
		if err != nil {
			return err
		}
		if target == x.dest {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := x.ensureDir(target); err != nil {
				return err
			}
			if err := os.Chmod(target, 0755); err != nil {
				return err
			}
			x.result.Dirs++
		case tar.TypeReg:
			if err := x.writeFile(target, hdr, tr); err != nil {
				return err
			}
			rel, _ := filepath.Rel(x.dest, target)
			x.result.Files = append(x.result.Files, rel)
		case tar.TypeSymlink:
			if err := x.symlink(target, hdr); err != nil {
				return err
			}
			x.result.Symlinks++
		case tar.TypeLink:
			if err := x.hardlink(target, hdr); err != nil {
				return err
			}
			x.result.Links++
		default:
			logger.V(4).Infof("Skipping %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func (x *extractor) target(name string) (string, error) {
	target := filepath.Join(x.dest, filepath.FromSlash(name))
	if !within(x.dest, target) {
		return "", &ErrIllegalPath{Name: name, Dest: x.dest}
	}
	return target, nil
}

// ensureDir creates dir after checking that its nearest existing ancestor,
// with symlinks resolved, is inside the destination.
func (x *extractor) ensureDir(dir string) error {
	existing := dir
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return err
	}
	if !within(x.realDest, resolved) {
		return &ErrIllegalPath{Name: dir, Dest: x.dest}
	}
	return os.MkdirAll(dir, 0755)
}

// prepare creates the parent directory and clears an existing entry at target
func (x *extractor) prepare(target string) error {
	if err := x.ensureDir(filepath.Dir(target)); err != nil {
		return err
	}
	if _, err := os.Lstat(target); err == nil {
		if !x.overwrite {
			return fmt.Errorf("%s already exists", target)
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
	}
	return nil
}

func fileMode(hdr *tar.Header) os.FileMode {
	mode := os.FileMode(hdr.Mode).Perm()
	if mode&0111 != 0 {
		return 0755
	}
	return mode | 0400
}

func (x *extractor) writeFile(target string, hdr *tar.Header, r io.Reader) error {
	if err := x.prepare(target); err != nil {
		return err
	}

	mode := fileMode(hdr)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile is subject to the umask
	return os.Chmod(target, mode)
}

func (x *extractor) symlink(target string, hdr *tar.Header) error {
	if filepath.IsAbs(hdr.Linkname) || !within(x.dest, filepath.Join(filepath.Dir(target), hdr.Linkname)) {
		return &ErrIllegalPath{Name: hdr.Name + " -> " + hdr.Linkname, Dest: x.dest}
	}
	if err := x.prepare(target); err != nil {
		return err
	}
	return os.Symlink(hdr.Linkname, target)
}

func (x *extractor) hardlink(target string, hdr *tar.Header) error {
	source, err := x.target(hdr.Linkname)
	if err != nil {
		return err
	}
	resolved, err := filepath.EvalSymlinks(source)
	if err != nil {
		return fmt.Errorf("hard link %s: %w", hdr.Name, err)
	}
	if !within(x.realDest, resolved) {
		return &ErrIllegalPath{Name: hdr.Name + " => " + hdr.Linkname, Dest: x.dest}
	}
	if err := x.prepare(target); err != nil {
		return err
	}
	return os.Link(source, target)
}
