package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pelusa-v/pelusa-chat-client/internal/app"
	"github.com/pelusa-v/pelusa-chat-client/internal/handlers"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local UI bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cmd)
	},
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	perms := handlers.NewDevicePermissions()
	a := app.New(cfg, logger, app.WithPermissions(perms))
	defer a.Close()

	go a.Hub.Start(ctx)

	router := handlers.NewRouter(handlers.New(a, perms, logger))
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.BridgeAddr).Str("backend", cfg.BaseURL).Msg("bridge listening")
		errc <- router.Listen(cfg.BridgeAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return router.Shutdown()
	}
}
