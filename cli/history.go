package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkarsli/cf-zone-provision/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent provisioning runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		manager, err := history.New(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history store %s: %w", cfg.HistoryPath, err)
		}
		defer manager.Close()

		entries, err := manager.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if len(entries) == 0 {
			cmd.Println("no runs recorded")
			return nil
		}
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "FAILED"
			}
			if e.DryRun {
				status += " (dry-run)"
			}
			cmd.Printf("%s  %-8s %s zone=%s created=%d updated=%d unchanged=%d settings=%d failures=%d %s\n",
				e.Time.Format(time.RFC3339), status, e.Domain, e.ZoneID,
				e.Created, e.Updated, e.NoOps, e.SettingsChanged, e.Failures,
				time.Duration(e.DurationMillis)*time.Millisecond)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show, 0 for all")
}
