package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strefethen/connect-bridge-go/internal/auth"
	"github.com/strefethen/connect-bridge-go/internal/config"
	"github.com/strefethen/connect-bridge-go/internal/logging"
	"github.com/strefethen/connect-bridge-go/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func init() {
	tokenCmd.Flags().StringP("subject", "s", "mopidy", "Token subject")
	tokenCmd.Flags().StringP("client", "c", "", "Client name recorded in the token")

	rootCmd.AddCommand(serveCmd, tokenCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "connect-bridge",
	Short:         "Bridge a Spotify Connect receiver and a Mopidy server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
		if cfg.JWTSecret == "" {
			logger.Warn("JWT_SECRET not set, /v1 API is unauthenticated")
		}

		handler, shutdownHandler, err := server.NewHandler(cfg, logger, server.Options{})
		if err != nil {
			return fmt.Errorf("server init error: %w", err)
		}

		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", cfg.Addr()).Info("connect-bridge listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				_ = shutdownHandler(context.Background())
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
		}

		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP shutdown error")
		}
		return shutdownHandler(shutdownCtx)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an access token for the /v1 API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		subject, _ := cmd.Flags().GetString("subject")
		client, _ := cmd.Flags().GetString("client")

		token, err := auth.GenerateAccessToken(cfg, auth.TokenPayload{Sub: subject, Client: client})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "connect-bridge %s\n", version)
	},
}
