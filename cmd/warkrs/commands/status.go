package commands

import (
	"log/slog"
	"os"

	"warkrs/lib/scrapers/siakad"
	"warkrs/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reads the study plan and shows where each target stands.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		client, err := siakad.NewClient(cfg.clientOptions())
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		dir, err := client.Directory(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read course directory", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Class", "Name", "Status"})
		for _, target := range cfg.Targets {
			status := "pending"
			if dir.IsEnrolled(target.Code) {
				status = "enrolled"
			}
			t.AppendRow(table.Row{target.Code, target.ClassId, dir.DisplayName(target.Code), status})
		}
		t.Render()

		slog.Info("study plan",
			"enrolled", len(dir.Enrolled),
			"selectable", len(dir.Available),
		)
	},
}
