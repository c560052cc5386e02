package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/fxinstall/pkg/installer"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:          "install [channel...]",
	Short:        "Install the latest build of one or more channels",
	SilenceUsage: true,
	Long: `Install the latest build of one or more channels.

If no channels are given, the channels from fxinstall.yaml are installed,
falling back to release. Channels are installed concurrently; a failing
channel does not stop the others.

Examples:
  fxinstall install                          # Install the configured channels
  fxinstall install beta nightly             # Install beta and nightly
  fxinstall install esr --locale de          # Install the German ESR build
  fxinstall install release --platform mac   # Fetch the macOS disk image`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	reqs, err := requests(args)
	if err != nil {
		return err
	}

	inst, err := installer.New(GetConfig())
	if err != nil {
		return err
	}

	summary, err := inst.InstallChannels(cmd.Context(), reqs)
	if err != nil {
		return err
	}

	// Wait for all installations to complete
	clicky.WaitForGlobalCompletion()

	result, err := clicky.Format(summary)
	if err != nil {
		return err
	}
	fmt.Println(result)

	return summary.Err()
}
