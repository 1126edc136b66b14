package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Subcommands
	db "github.com/cozy-creator/hf-mirror/cmd/hfmirror/db"
	download "github.com/cozy-creator/hf-mirror/cmd/hfmirror/download"
	history "github.com/cozy-creator/hf-mirror/cmd/hfmirror/history"
	locks "github.com/cozy-creator/hf-mirror/cmd/hfmirror/locks"
	materialize "github.com/cozy-creator/hf-mirror/cmd/hfmirror/materialize"
	publish "github.com/cozy-creator/hf-mirror/cmd/hfmirror/publish"
	serve "github.com/cozy-creator/hf-mirror/cmd/hfmirror/serve"
	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "hf-mirror",
	Short: "Download Hugging Face repositories through a mirror",
	Long: "Downloads models and datasets with huggingface-cli through a mirror endpoint, " +
		"retrying failed transfers, clearing stale cache locks and optionally replacing " +
		"symbolic links with real files.",
	SilenceUsage:  true,
	SilenceErrors: true,

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		if err := config.InitConfig(); err != nil && !errors.Is(err, config.ErrConfigAlreadyLoaded) {
			return err
		}

		cfg, err := config.GetConfig()
		if err != nil {
			return err
		}

		_, err = logger.InitLogger(cfg.Environment)
		return err
	},
	RunE: download.Run,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := Cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("home", "", "Path to the hf-mirror home directory (default ~/.hf-mirror)")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")
	pflags.String("environment", "", "Environment: production, development or test")
	pflags.String("cache-dir", "", "Hugging Face cache directory (default ~/.cache/huggingface/hub)")
	pflags.String("endpoint", "", "Mirror endpoint (default https://hf-mirror.com)")

	// Bind flags to viper
	viper.BindPFlag("home", pflags.Lookup("home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))
	viper.BindPFlag("environment", pflags.Lookup("environment"))
	viper.BindPFlag("cache_dir", pflags.Lookup("cache-dir"))
	viper.BindPFlag("endpoint", pflags.Lookup("endpoint"))

	download.AddFlags(Cmd.Flags())
	Cmd.MarkFlagRequired("model")

	// Add subcommands
	Cmd.AddCommand(download.Cmd, locks.Cmd, materialize.Cmd, publish.Cmd, history.Cmd, serve.Cmd, db.Cmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
