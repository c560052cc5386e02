package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/fxinstall/pkg/installer"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// CheckInfo is one row of the check table
type CheckInfo struct {
	Channel   string `json:"channel" pretty:"label=Channel"`
	Locale    string `json:"locale" pretty:"label=Locale"`
	Installed string `json:"installed,omitempty" pretty:"label=Installed"`
	Available string `json:"available,omitempty" pretty:"label=Available"`
	Status    string `json:"status" pretty:"label=Status"`
	Error     string `json:"error,omitempty" pretty:"label=Error"`
}

// CheckList represents the check results for table display
type CheckList struct {
	Channels []CheckInfo `json:"channels" pretty:"table"`
}

var checkCmd = &cobra.Command{
	Use:   "check [channel...]",
	Short: "Compare installed builds with the latest upstream builds",
	Long: `Resolve the latest build of each channel and compare it with the
recorded installation. Nothing is downloaded.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	reqs, err := requests(args)
	if err != nil {
		return err
	}

	inst, err := installer.New(GetConfig())
	if err != nil {
		return err
	}

	results := inst.Check(cmd.Context(), reqs)
	list := CheckList{
		Channels: lo.Map(results, func(r installer.CheckResult, _ int) CheckInfo {
			return CheckInfo{
				Channel:   string(r.Request.Channel),
				Locale:    r.Request.Locale,
				Installed: lo.CoalesceOrEmpty(r.InstalledVersion, r.Installed),
				Available: lo.CoalesceOrEmpty(r.AvailableVersion, r.Available),
				Status:    string(r.Status),
				Error:     r.Error,
			}
		}),
	}

	result, err := clicky.Format(list)
	if err != nil {
		return err
	}
	cmd.Println(result)

	errored := lo.CountBy(results, func(r installer.CheckResult) bool { return r.Status == installer.CheckError })
	if errored > 0 {
		return fmt.Errorf("%d of %d channels could not be checked", errored, len(results))
	}
	return nil
}
