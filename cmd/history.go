package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aevrHQ/ui/database/repo/uploads"
	"github.com/aevrHQ/ui/internal/app"
	"github.com/aevrHQ/ui/utils/format"
)

var (
	historyOlderThan time.Duration
	historyLimit     int
	historyProvider  string
)

// historyCmd 上传历史维护命令
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain upload history",
}

var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the upload history tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := historyContainer()
		if err != nil {
			return err
		}
		defer container.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "Upload history schema is up to date")
		return nil
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent uploads",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := historyContainer()
		if err != nil {
			return err
		}
		defer container.Close()

		records, total, err := container.History().List(cmd.Context(), historyFilter(), 1, historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range records {
			status := "OK  "
			detail := ""
			if !r.Success {
				status = "FAIL"
				detail = r.Error
			}
			fmt.Fprintf(out, "%s %s %-12s %s (%s) %s\n",
				r.CreatedAt.Format(time.DateTime), status, r.Provider, r.FileName,
				format.HumanReadableSize(r.Size), detail)
		}
		fmt.Fprintf(out, "%d of %d records\n", len(records), total)
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete upload records older than the given age",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOlderThan <= 0 {
			return errors.New("--older-than must be positive")
		}
		container, err := historyContainer()
		if err != nil {
			return err
		}
		defer container.Close()

		cutoff := time.Now().Add(-historyOlderThan)
		deleted, err := container.History().DeleteBefore(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records created before %s\n", deleted, cutoff.Format(time.RFC3339))
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records to show")
	historyListCmd.Flags().StringVarP(&historyProvider, "provider", "p", "", "only show records for this provider")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "delete records older than this age")

	historyCmd.AddCommand(historyMigrateCmd, historyListCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// historyContainer 只初始化上传历史，db_type 为 none 时返回错误
func historyContainer() (*app.Container, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	container := app.NewContainer(cfg, logger)
	if err := container.InitHistory(); err != nil {
		_ = container.Close()
		return nil, err
	}
	if container.History() == nil {
		_ = container.Close()
		return nil, errors.New("upload history is disabled (db_type is none)")
	}
	return container, nil
}

func historyFilter() uploads.ListFilter {
	return uploads.ListFilter{Provider: historyProvider}
}
