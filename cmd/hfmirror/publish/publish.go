package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/services/filestorage"
	"github.com/cozy-creator/hf-mirror/internal/services/publisher"
	"github.com/cozy-creator/hf-mirror/internal/utils/pathutil"
	"github.com/cozy-creator/hf-mirror/pkg/logger"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "publish <dir>",
	Short: "Upload a downloaded repository to the configured file storage",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	flags := Cmd.Flags()

	flags.String("prefix", "", "Key prefix for uploaded files (default: the directory name)")
	flags.Int("workers", 10, "Number of concurrent uploads")
	flags.String("filesystem-type", "", "Filesystem type: 'local' or 's3'")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	dir, err := pathutil.ExpandPath(args[0])
	if err != nil {
		return err
	}
	if dir, err = filepath.Abs(dir); err != nil {
		return err
	}

	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}
	if prefix == "" {
		prefix = filepath.Base(dir)
	}

	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}

	storageCfg := *cfg
	if fs, _ := cmd.Flags().GetString("filesystem-type"); fs != "" {
		storageCfg.Filesystem = fs
	}

	storage, err := filestorage.NewFileStorage(cmd.Context(), &storageCfg)
	if err != nil {
		return err
	}

	p := publisher.NewPublisher(storage, workers, logger.GetLogger())
	defer p.Stop()

	n, err := p.Publish(cmd.Context(), dir, prefix)
	fmt.Fprintf(cmd.OutOrStdout(), "Published %d files from %s\n", n, dir)
	return err
}
