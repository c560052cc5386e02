package installer

import (
	"context"
	"sync"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/clicky/api/icons"
	"github.com/flanksource/fxinstall/pkg/state"
	"github.com/flanksource/fxinstall/pkg/types"
)

type CheckStatus string

const (
	CheckUpToDate        CheckStatus = "up-to-date"
	CheckUpdateAvailable CheckStatus = "update-available"
	CheckNewerInstalled  CheckStatus = "newer-installed"
	CheckNotInstalled    CheckStatus = "not-installed"
	CheckError           CheckStatus = "error"
)

// CheckResult compares the installed artifact of a target with what resolves upstream today
type CheckResult struct {
	Request   types.ArtifactRequest `json:"request" yaml:"request"`
	Installed string                `json:"installed,omitempty" yaml:"installed,omitempty" pretty:"label=Installed"`
	Available string                `json:"available,omitempty" yaml:"available,omitempty" pretty:"label=Available"`
	Status    CheckStatus           `json:"status" yaml:"status" pretty:"label=Status"`
	Error     string                `json:"error,omitempty" yaml:"error,omitempty"`

	InstalledVersion string `json:"installed_version,omitempty" yaml:"installed_version,omitempty"`
	AvailableVersion string `json:"available_version,omitempty" yaml:"available_version,omitempty"`
}

func (r CheckResult) Pretty() api.Text {
	text := clicky.Text("").Append(string(r.Request.Channel), "bold").Append("/" + r.Request.Locale + " ")
	switch r.Status {
	case CheckUpToDate:
		text = text.Add(icons.Success).Append(" "+r.Installed, "text-green-500")
	case CheckUpdateAvailable:
		text = text.Append(r.Installed+" -> ", "text-muted").Append(r.Available, "text-yellow-500")
	case CheckNewerInstalled:
		text = text.Append(r.Installed, "text-blue-500").Append(" (upstream has "+r.Available+")", "text-muted")
	case CheckNotInstalled:
		text = text.Add(icons.Skip).Append(" not installed, "+r.Available+" available", "text-muted")
	default:
		text = text.Add(icons.Error).Append(" "+r.Error, "text-red-500")
	}
	return text
}

// Check resolves every request and compares the result with the install records.
// Nothing is downloaded.
func (i *Installer) Check(ctx context.Context, reqs []types.ArtifactRequest) []CheckResult {
	results := make([]CheckResult, len(reqs))
	var wg sync.WaitGroup
	for idx, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[idx] = i.check(ctx, req)
		}()
	}
	wg.Wait()
	return results
}

func (i *Installer) check(ctx context.Context, req types.ArtifactRequest) CheckResult {
	result := CheckResult{Request: req}

	record, err := state.Load(i.config.InstallRoot, req.Channel, req.Locale)
	if err != nil {
		result.Status, result.Error = CheckError, err.Error()
		return result
	}
	if record != nil {
		result.Installed = record.Filename
		result.InstalledVersion = state.VersionFromFilename(record.Filename)
	}

	artifact, err := i.Resolve(ctx, req)
	if err != nil {
		result.Status, result.Error = CheckError, err.Error()
		return result
	}
	result.Available = artifact.Filename
	result.AvailableVersion = state.VersionFromFilename(artifact.Filename)

	switch {
	case record == nil:
		result.Status = CheckNotInstalled
	case record.Filename == artifact.Filename && record.Platform == req.Platform:
		result.Status = CheckUpToDate
	case record.Platform == req.Platform && result.InstalledVersion != "" && result.AvailableVersion != "" &&
		state.Compare(result.InstalledVersion, result.AvailableVersion) > 0:
		// upstream rolled back
		result.Status = CheckNewerInstalled
	default:
		result.Status = CheckUpdateAvailable
	}
	return result
}
