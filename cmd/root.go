package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/fxinstall/pkg/catalog"
	"github.com/flanksource/fxinstall/pkg/config"
	"github.com/flanksource/fxinstall/pkg/platform"
	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configFile   string
	installRoot  string
	platformFlag string
	localeFlag   string
	strategyFlag string
	policyFlag   string
	tmpDir       string
	unitTimeout  string
	skipCurrent  bool
	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fxinstall",
	Short: "Install the latest Firefox builds for one or more release channels",
	Long: `fxinstall resolves the newest Firefox build for each requested channel
(release, beta, esr, aurora, nightly), downloads it and installs it into
<install-root>/<channel>/<locale>, replacing any previous installation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply clicky flags after command line parsing
		clicky.Flags.UseFlags()

		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		if err := applyFlags(cmd.Flags(), cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		loadedConfig = cfg
		logger.V(2).Infof("Installing to %s (%s, %s)", cfg.InstallRoot, cfg.Platform, cfg.Locale)
		return nil
	},
}

// applyFlags overrides cfg with the flags set on the command line
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("install-root") {
		cfg.InstallRoot = installRoot
	}
	if flags.Changed("platform") {
		p, err := platform.Parse(platformFlag)
		if err != nil {
			return err
		}
		cfg.Platform = p
	}
	if flags.Changed("locale") {
		cfg.Locale = localeFlag
	}
	if flags.Changed("strategy") {
		cfg.Strategy = types.Strategy(strategyFlag)
	}
	if flags.Changed("policy") {
		cfg.AmbiguityPolicy = types.AmbiguityPolicy(policyFlag)
	}
	if flags.Changed("tmp-dir") {
		cfg.TmpDir = tmpDir
	}
	if flags.Changed("skip-current") {
		cfg.SkipCurrent = skipCurrent
	}
	if flags.Changed("timeout") {
		d, err := time.ParseDuration(unitTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.UnitTimeout = d
	}
	return cfg.ExpandPaths()
}

// requests builds one request per channel argument, or the configured channels
func requests(args []string) ([]types.ArtifactRequest, error) {
	channels, err := catalog.ParseChannels(args)
	if err != nil {
		return nil, err
	}
	return loadedConfig.Requests(channels...), nil
}

// Execute runs the root command; an interrupt cancels every channel in flight
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetConfig returns the configuration loaded for the running command
func GetConfig() *config.Config {
	return loadedConfig
}

func init() {
	// Channels run unbounded and are never retried, so the task manager's
	// concurrency and retry flags are not exposed.
	clicky.BindAllFlags(rootCmd.PersistentFlags(), "!tasks", "!format")
	rootCmd.PersistentFlags().BoolVar(&clicky.Flags.NoProgress, "no-progress", clicky.Flags.NoProgress, "Disable progress display")
	bindFlags(rootCmd.PersistentFlags())
}

func bindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&configFile, "config", "c", "", "Path to fxinstall.yaml (default ./fxinstall.yaml when present)")
	flags.StringVar(&installRoot, "install-root", "", "Directory that receives <channel>/<locale> installs")
	flags.StringVar(&platformFlag, "platform", "", "Target platform (linux-x86_64, linux-i686, mac, win32, win64 or auto)")
	flags.StringVar(&localeFlag, "locale", "", "Build locale, e.g. en-US or fr")
	flags.StringVar(&strategyFlag, "strategy", "", "Resolution strategy (listing, redirect)")
	flags.StringVar(&policyFlag, "policy", "", "What to do with ambiguous listings (strict, lenient)")
	flags.StringVar(&tmpDir, "tmp-dir", "", "Directory for downloads in progress")
	flags.StringVar(&unitTimeout, "timeout", "", "Time limit for each channel, e.g. 10m (0 disables)")
	flags.BoolVar(&skipCurrent, "skip-current", false, "Skip channels whose installed artifact is already the newest")
}
