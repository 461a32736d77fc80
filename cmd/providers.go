package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aevrHQ/ui/internal/app"
)

// providersCmd 列出支持的提供者类型与已配置的提供者
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported provider types and configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		container := app.NewContainer(cfg, logger)
		defer container.Close()
		if err := container.InitUploads(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		types := container.Factory().Types()
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		fmt.Fprintf(out, "Supported types: %s\n", strings.Join(names, ", "))

		registry := container.Registry()
		if len(registry.Names()) == 0 {
			fmt.Fprintln(out, "No providers configured")
			return nil
		}
		for _, name := range registry.Names() {
			marker := " "
			if name == registry.DefaultName() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
		}
		if multi := registry.Multi(); multi != nil {
			fmt.Fprintf(out, "  %s (strategy: %s, providers: %s)\n", multi.Name(), multi.Strategy(), strings.Join(multi.Providers(), ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
