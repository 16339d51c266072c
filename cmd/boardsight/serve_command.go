package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/boardsight/internal/app"
	"github.com/ayusman/boardsight/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var staticDir string
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and own the camera",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if b := strings.TrimSpace(bind); b != "" {
				cfg.Server.Bind = b
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if !ctx.configSeen {
				logger.Info("config file not found; using defaults", "path", ctx.configPath)
			}

			if staticDir == "" {
				staticDir = findWebDir(cfg.Paths.DataDir)
			}
			if staticDir != "" {
				logger.Info("serving static files", "dir", staticDir)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(app.Config{
				Settings:  cfg,
				Logger:    logger,
				StaticDir: staticDir,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Run(runCtx)
		},
	}

	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of static web files")
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address, overriding server.bind")
	return cmd
}

// findWebDir searches for the web directory in common locations: "web",
// "../web" and the data directory. It returns "" when none exists.
func findWebDir(dataDir string) string {
	candidates := []string{"web", filepath.Join("..", "web")}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "web"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
