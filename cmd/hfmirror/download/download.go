package cmd

import (
	"fmt"
	"os"

	"github.com/cozy-creator/hf-mirror/internal/app"
	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/services/mirror"
	"github.com/cozy-creator/hf-mirror/internal/utils/pathutil"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var Cmd = &cobra.Command{
	Use:   "download",
	Short: "Download a repository through the mirror",
	Args:  cobra.NoArgs,
	RunE:  Run,
}

func init() {
	AddFlags(Cmd.Flags())
	Cmd.MarkFlagRequired("model")
}

// AddFlags registers the download flags on flags. The root command shares
// them so that `hf-mirror -M org/name` works without a subcommand.
func AddFlags(flags *pflag.FlagSet) {
	flags.StringP("model", "M", "", "Repository to download, e.g. org/name")
	flags.StringP("save_dir", "S", "", "Directory to save into; files go to <save_dir>/<name>")
	flags.StringP("token", "T", "", "Hugging Face access token (default $HF_TOKEN)")
	flags.Bool("no-hf-transfer", false, "Disable hf_transfer accelerated downloads")
	flags.String("repo-type", "", "Repository type: model, dataset or space")
	flags.String("revision", "", "Branch, tag or commit to download")
	flags.Bool("flat", false, "Write files directly into save_dir instead of a per-model subdirectory")
	flags.Bool("materialize-symlinks", false, "Replace symbolic links in the output with real files")
	flags.Bool("verify-copies", false, "Verify materialized copies with BLAKE3")
	flags.Bool("publish", false, "Upload the downloaded files to the configured file storage")
}

// RequestFromFlags builds a download request from parsed flags, falling back to
// the configured token.
func RequestFromFlags(flags *pflag.FlagSet, cfg *config.Config) (mirror.Request, error) {
	var req mirror.Request
	var err error

	if req.Model, err = flags.GetString("model"); err != nil {
		return req, err
	}
	if req.SaveDir, err = flags.GetString("save_dir"); err != nil {
		return req, err
	}
	if req.SaveDir, err = pathutil.ExpandPath(req.SaveDir); err != nil {
		return req, err
	}
	if req.Token, err = flags.GetString("token"); err != nil {
		return req, err
	}
	if req.Token == "" {
		req.Token = cfg.Token
	}
	if req.RepoType, err = flags.GetString("repo-type"); err != nil {
		return req, err
	}
	if req.Revision, err = flags.GetString("revision"); err != nil {
		return req, err
	}
	if req.Flat, err = flags.GetBool("flat"); err != nil {
		return req, err
	}
	if req.MaterializeSymlinks, err = flags.GetBool("materialize-symlinks"); err != nil {
		return req, err
	}
	if req.VerifyCopies, err = flags.GetBool("verify-copies"); err != nil {
		return req, err
	}
	if req.Publish, err = flags.GetBool("publish"); err != nil {
		return req, err
	}

	noTransfer, err := flags.GetBool("no-hf-transfer")
	if err != nil {
		return req, err
	}
	req.Accelerate = !noTransfer

	return req, req.Validate()
}

func Run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	req, err := RequestFromFlags(cmd.Flags(), cfg)
	if err != nil {
		return err
	}

	options := []app.OptionFunc{app.WithDBInitialization(), app.WithProgress(os.Stderr)}
	if req.Publish {
		options = append(options, app.WithPublisher())
	}

	a, err := app.NewApp(cmd.Context(), cfg, options...)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.Download(req)
	if !result.Succeeded {
		if result.Err != nil {
			return fmt.Errorf("%w: %s: %w", mirror.ErrDownloadFailed, req.Model, result.Err)
		}
		return fmt.Errorf("%w: %s after %d attempts", mirror.ErrDownloadFailed, req.Model, len(result.Attempts))
	}

	location := result.LocalDir
	if location == "" {
		location = cfg.CacheDir
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", req.Model, location)
	return nil
}
