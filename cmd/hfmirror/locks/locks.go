package cmd

import (
	"fmt"

	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/services/janitor"
	"github.com/cozy-creator/hf-mirror/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and clear Hugging Face cache lock files",
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every lock file under <cache>/.locks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jan, err := newJanitor(cmd)
		if err != nil {
			return err
		}

		n := jan.Sweep()
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d lock files from %s\n", n, jan.CacheDir())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List lock files under <cache>/.locks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.GetConfig()
		if err != nil {
			return err
		}

		files, err := janitor.FindLockFiles(cfg.CacheDir)
		if err != nil {
			return err
		}
		for _, file := range files {
			fmt.Fprintln(cmd.OutOrStdout(), file)
		}
		return nil
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait [lock-file...]",
	Short: "Wait for lock files to be released, force-deleting them after the timeout",
	RunE: func(cmd *cobra.Command, args []string) error {
		jan, err := newJanitor(cmd)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			n := jan.WaitForAll(cmd.Context(), jan.CacheDir())
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d lock files\n", n)
			return nil
		}

		for _, lockFile := range args {
			jan.WaitForLockRelease(cmd.Context(), lockFile, jan.Timeout())
		}
		return cmd.Context().Err()
	},
}

func init() {
	waitCmd.Flags().Duration("timeout", 0, "How long to wait before force-deleting (default from config, 30s)")

	Cmd.AddCommand(clearCmd, listCmd, waitCmd)
}

func newJanitor(cmd *cobra.Command) (*janitor.Janitor, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Locks.Timeout
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		if timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	return janitor.New(cfg.CacheDir, logger.GetLogger(),
		janitor.WithTimeout(timeout),
		janitor.WithPollInterval(cfg.Locks.PollInterval),
	), nil
}
