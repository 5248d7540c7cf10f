package commands

import (
	"log/slog"

	"warkrs/lib/scrapers/siakad"
	"warkrs/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verifies the configured session cookies still work, without registering anything.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		client, err := siakad.NewClient(cfg.clientOptions())
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		res, err := client.ChoosePage(cmd.Context())
		if err != nil {
			serviceutil.Fatal("portal unreachable", err)
		}
		if siakad.Classify(res.Body, res.Status) == siakad.OutcomeSessionExpired {
			slog.Error("session is dead, log in again and update the cookies")
			Exit(1)
		}

		dir := siakad.ParseDirectory(res.Body)
		slog.Info("session is alive",
			"status", res.Status,
			"selectable", len(dir.Available),
			"enrolled", len(dir.Enrolled),
		)
	},
}
