package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/fxinstall/pkg/installer"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/spf13/cobra"
)

// ResolvedInfo is one row of the resolve table
type ResolvedInfo struct {
	Channel  string `json:"channel" pretty:"label=Channel"`
	Locale   string `json:"locale" pretty:"label=Locale"`
	Platform string `json:"platform" pretty:"label=Platform"`
	Filename string `json:"filename,omitempty" pretty:"label=Artifact"`
	URL      string `json:"url,omitempty" pretty:"label=URL"`
	Error    string `json:"error,omitempty" pretty:"label=Error"`
}

// ResolvedList represents the resolve results for table display
type ResolvedList struct {
	Artifacts []ResolvedInfo `json:"artifacts" pretty:"table"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [channel...]",
	Short: "Print the download URL of the latest build without installing it",
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	reqs, err := requests(args)
	if err != nil {
		return err
	}

	inst, err := installer.New(GetConfig())
	if err != nil {
		return err
	}

	var list ResolvedList
	failed := 0
	for _, req := range reqs {
		info := ResolvedInfo{Channel: string(req.Channel), Locale: req.Locale, Platform: string(req.Platform)}
		artifact, err := inst.Resolve(cmd.Context(), req)
		if err != nil {
			failed++
			info.Error = fmt.Sprintf("[%s] %v", types.Classify(err), err)
		} else {
			info.Filename = artifact.Filename
			info.URL = artifact.URL
		}
		list.Artifacts = append(list.Artifacts, info)
	}

	result, err := clicky.Format(list)
	if err != nil {
		return err
	}
	cmd.Println(result)

	if failed > 0 {
		return fmt.Errorf("%d of %d channels could not be resolved", failed, len(reqs))
	}
	return nil
}
