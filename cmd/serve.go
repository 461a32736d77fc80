package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/aevrHQ/ui/api/core"
	"github.com/aevrHQ/ui/config"
	"github.com/aevrHQ/ui/internal/app"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	cfg, logger, err := loadConfig()
	if err != nil {
		logger = fallbackLogger()
		logger.WithError(err).Fatal("Failed to load config")
	}
	logger.Infof("uploadkit %s (%s)", config.Version, config.CommitHash)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	container := app.NewContainer(cfg, logger)
	if err := container.Init(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}

	server, cleanup := core.NewServer(container.RouterDependencies())
	go func() {
		logger.Infof("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.UploadTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// 等待已入队的上传结算，历史记录在结算时写入
	if err := container.Queue().Drain(ctx); err != nil {
		logger.WithError(err).Warn("Upload queue did not drain before shutdown")
	}

	if cleanup != nil {
		cleanup()
	}

	if err := container.Close(); err != nil {
		logger.WithError(err).Error("Error closing container")
	}

	logger.Info("Server exited successfully")
}
