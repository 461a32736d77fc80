package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aevrHQ/ui/config"
	"github.com/aevrHQ/ui/utils"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uploadkit",
	Short: "Upload files to one or more storage providers",
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (eg: /etc/uploadkit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	err := viper.BindPFlag("config_file_path", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		return
	}
}

// loadConfig 加载全局配置并创建日志器
func loadConfig() (*config.Config, *logrus.Logger, error) {
	if err := config.InitConfig(); err != nil {
		return nil, nil, err
	}
	cfg := config.Get()
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, utils.NewLogger(level, cfg.LogFormat), nil
}

func fallbackLogger() *logrus.Logger {
	return utils.NewLogger("info", "text")
}
