package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/utils"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const recordSuffix = ".fxinstall.yaml"

// Record describes the artifact currently installed in one install target
type Record struct {
	Channel     catalog.Channel  `json:"channel" yaml:"channel" pretty:"label=Channel"`
	Locale      string           `json:"locale" yaml:"locale" pretty:"label=Locale"`
	Platform    catalog.Platform `json:"platform" yaml:"platform" pretty:"label=Platform"`
	Version     string           `json:"version,omitempty" yaml:"version,omitempty" pretty:"label=Version"`
	Filename    string           `json:"filename" yaml:"filename" pretty:"label=Artifact"`
	URL         string           `json:"url" yaml:"url"`
	Strategy    string           `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Size        int64            `json:"size" yaml:"size"`
	Directory   string           `json:"directory" yaml:"directory" pretty:"label=Directory"`
	InstalledAt time.Time        `json:"installed_at" yaml:"installed_at" pretty:"label=Installed"`
	RunID       string           `json:"run_id" yaml:"run_id"`
}

func (r Record) Pretty() api.Text {
	text := clicky.Text("").Append(string(r.Channel), "bold").Append("/" + r.Locale)
	if r.Version != "" {
		text = text.Append(" "+r.Version, "text-green-500")
	}
	return text.Append(" "+r.Filename, "text-muted")
}

// NewRunID returns an identifier shared by every record written in one invocation
func NewRunID() string {
	return uuid.NewString()
}

// RecordPath returns root/<channel>/.<locale>.fxinstall.yaml, a sibling of the install target
func RecordPath(root string, channel catalog.Channel, locale string) (string, error) {
	local, err := catalog.ChannelToken(channel, catalog.TokenLocal)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, local, "."+locale+recordSuffix), nil
}

// Save writes the record next to its install target, replacing any previous one
func Save(root string, r Record) error {
	path, err := RecordPath(root, r.Channel, r.Locale)
	if err != nil {
		return err
	}
	if r.Version == "" {
		r.Version = VersionFromFilename(r.Filename)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal install record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write install record %s: %w", path, err)
	}
	log.Debugf("Saved install record %s", path)
	return nil
}

// Load returns the record for a target, or nil when nothing has been installed there
func Load(root string, channel catalog.Channel, locale string) (*Record, error) {
	path, err := RecordPath(root, channel, locale)
	if err != nil {
		return nil, err
	}
	return read(path)
}

func read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse install record %s: %w", path, err)
	}
	return &r, nil
}

// Remove deletes the record for a target
func Remove(root string, channel catalog.Channel, locale string) error {
	path, err := RecordPath(root, channel, locale)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns every record under root, sorted by channel then locale.
// Unreadable records are skipped with a warning.
func List(root string) ([]Record, error) {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(root), "*/.*"+recordSuffix)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, match := range matches {
		r, err := read(filepath.Join(root, filepath.FromSlash(match)))
		if err != nil || r == nil {
			log.Warnf("Skipping install record %s: %v", match, err)
			continue
		}
		records = append(records, *r)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Channel != records[j].Channel {
			return records[i].Channel < records[j].Channel
		}
		return records[i].Locale < records[j].Locale
	})
	return records, nil
}

// VersionFromFilename extracts the upstream version from an artifact name, e.g. 121.0b3
func VersionFromFilename(name string) string {
	return utils.ExtractVersion(name)
}

// Compare orders two upstream versions, returning -1, 0 or 1.
// Versions that are not semver-like are compared lexically.
func Compare(a, b string) int {
	va, errA := semver.NewVersion(utils.Normalize(a))
	vb, errB := semver.NewVersion(utils.Normalize(b))
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return strings.Compare(a, b)
}
