package cmd

import (
	"fmt"
	"os"

	"github.com/cozy-creator/hf-mirror/internal/services/materializer"
	"github.com/cozy-creator/hf-mirror/internal/utils/pathutil"
	"github.com/cozy-creator/hf-mirror/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "materialize <dir>",
	Short: "Replace every symbolic link under a directory with a real copy",
	Args:  cobra.ExactArgs(1),
	RunE:  runMaterialize,
}

func init() {
	Cmd.Flags().Bool("verify", false, "Verify each copy against its source with BLAKE3")
	Cmd.Flags().Bool("no-progress", false, "Do not render progress bars")
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	dir, err := pathutil.ExpandPath(args[0])
	if err != nil {
		return err
	}

	verify, err := cmd.Flags().GetBool("verify")
	if err != nil {
		return err
	}
	noProgress, err := cmd.Flags().GetBool("no-progress")
	if err != nil {
		return err
	}

	options := []materializer.OptionFunc{materializer.WithVerify(verify)}
	if !noProgress {
		options = append(options, materializer.WithProgress(os.Stderr))
	}

	m := materializer.New(logger.GetLogger(), options...)
	report, err := m.Materialize(cmd.Context(), dir)
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Materialized %d files and %d directories (%d bytes)\n", report.Files, report.Dirs, report.Bytes)
		for _, path := range report.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s\n", path)
		}
	}

	return err
}
