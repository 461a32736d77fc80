package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aevrHQ/ui/internal/app"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
	"github.com/aevrHQ/ui/utils/format"
)

var (
	uploadProvider    string
	uploadOptions     string
	uploadJSON        bool
	uploadStrategy    string
	uploadConcurrency int
)

// uploadCmd 通过配置的提供者上传本地文件
var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload local files through the configured providers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(cmd, args)
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadProvider, "provider", "p", "", "provider name, or \"multi\" for all providers (default: configured default)")
	uploadCmd.Flags().StringVarP(&uploadOptions, "options", "o", "", "provider options as a JSON object")
	uploadCmd.Flags().BoolVar(&uploadJSON, "json", false, "print results as JSON")
	uploadCmd.Flags().StringVar(&uploadStrategy, "strategy", "", "override multi_strategy (all, first-success, primary-fallback)")
	uploadCmd.Flags().IntVarP(&uploadConcurrency, "concurrency", "c", 0, "override queue_concurrency")
	rootCmd.AddCommand(uploadCmd)
}

type uploadLine struct {
	File     string         `json:"file"`
	Provider string         `json:"provider"`
	Size     int64          `json:"size"`
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func runUpload(cmd *cobra.Command, paths []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var opts storage.Options
	if uploadOptions != "" {
		if err := json.Unmarshal([]byte(uploadOptions), &opts); err != nil {
			return fmt.Errorf("invalid --options: %w", err)
		}
	}

	// 命令行参数只影响本次上传，不修改全局配置
	override := *cfg
	if uploadStrategy != "" {
		override.MultiStrategy = uploadStrategy
	}
	if uploadConcurrency > 0 {
		override.QueueConcurrency = uploadConcurrency
	}

	container := app.NewContainer(&override, logger)
	defer container.Close()
	if err := container.InitUploads(); err != nil {
		return err
	}

	provider, err := container.Registry().Get(uploadProvider)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.UploadTimeout)
	defer cancel()

	// 先全部入队，由队列控制并发，再按顺序等待
	lines := make([]uploadLine, len(paths))
	tickets := make([]*queue.Ticket, len(paths))
	for i, path := range paths {
		lines[i] = uploadLine{File: path, Provider: provider.Name()}
		file, err := storage.OpenLocalFile(path)
		if err != nil {
			lines[i].Error = err.Error()
			continue
		}
		lines[i].Size = file.Size
		tickets[i] = container.Queue().Add(ctx, file, provider, opts)
	}

	failed := 0
	for i, ticket := range tickets {
		if ticket == nil {
			failed++
			continue
		}
		result, err := ticket.Wait(ctx)
		switch {
		case err != nil:
			lines[i].Error = err.Error()
		case result.Success:
			lines[i].Success = true
			lines[i].Data = result.Data
		default:
			lines[i].Error = result.Error
		}
		if !lines[i].Success {
			failed++
		}
	}

	out := cmd.OutOrStdout()
	if uploadJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(lines); err != nil {
			return err
		}
	} else {
		for _, l := range lines {
			if l.Success {
				data, _ := json.Marshal(l.Data)
				fmt.Fprintf(out, "OK    %s (%s) -> %s %s\n", l.File, format.HumanReadableSizeWithPrecision(l.Size, 1), l.Provider, data)
			} else {
				fmt.Fprintf(out, "FAIL  %s -> %s: %s\n", l.File, l.Provider, l.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}
