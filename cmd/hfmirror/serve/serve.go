package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cozy-creator/hf-mirror/internal/app"
	"github.com/cozy-creator/hf-mirror/internal/config"
	"github.com/cozy-creator/hf-mirror/internal/server"
	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download queue behind an HTTP API",
	RunE:  runServe,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", config.DefaultHost, "Host to run the server on")
	flags.String("filesystem-type", "", "Publish target: 'local' or 's3'")
	flags.String("publish-dir", "", "Directory published files are written to and served from")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("filesystem_type", flags.Lookup("filesystem-type"))
	viper.BindPFlag("publish_dir", flags.Lookup("publish-dir"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	app, err := app.NewApp(cmd.Context(), cfg, app.WithDBInitialization(), app.WithPublisher())
	if err != nil {
		return err
	}
	defer app.Close()

	srv, err := server.NewServer(app.Config())
	if err != nil {
		return fmt.Errorf("error creating server: %w", err)
	}
	srv.SetupRoutes(app)

	errc := make(chan error, 1)
	go func() {
		app.Logger.Info("starting server", zap.String("addr", srv.Addr()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-cmd.Context().Done():
		app.Logger.Info("shutting down server")
		return srv.Stop(context.Background())
	}
}
