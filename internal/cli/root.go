// Package cli is the pelusa command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pelusa-v/pelusa-chat-client/internal/app"
	"github.com/pelusa-v/pelusa-chat-client/internal/config"
	"github.com/pelusa-v/pelusa-chat-client/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pelusa",
	Short: "Chat client core with a local UI bridge",
	Long: `pelusa keeps chat rooms in sync with the chat backend and exposes
them to a UI shell over a local HTTP and websocket bridge. The same core
is reachable from the command line for reading and sending messages.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default $PELUSA_CONFIG)")
	rootCmd.PersistentFlags().String("email", "", "sign in with this email instead of PELUSA_TOKEN")
	rootCmd.PersistentFlags().String("password", "", "password for --email")
}

// loadConfig reads configuration honoring --config and --verbose.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logging.New(cfg.Env, cfg.LogLevel), nil
}

// newApp builds the core and signs in, with --email/--password when given
// and with the configured token otherwise.
func newApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a := app.New(cfg, logger)

	email, _ := cmd.Flags().GetString("email")
	if email != "" {
		password, _ := cmd.Flags().GetString("password")
		if _, err := a.Login(ctx, email, password); err != nil {
			return nil, fmt.Errorf("sign in: %w", err)
		}
		return a, nil
	}
	if a.Session.Token() == "" {
		return nil, fmt.Errorf("not signed in: set PELUSA_TOKEN and PELUSA_USER_ID or pass --email and --password")
	}
	return a, nil
}
