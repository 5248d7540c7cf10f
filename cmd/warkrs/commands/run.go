package commands

import (
	"fmt"
	"log/slog"
	"time"

	"warkrs/lib/notify"
	"warkrs/lib/notify/email"
	"warkrs/lib/notify/telegram"
	"warkrs/lib/restyutil"
	"warkrs/lib/scrapers/siakad"
	"warkrs/lib/serviceutil"
	"warkrs/lib/telemetry"
	"warkrs/services/warkrs"

	"github.com/spf13/cobra"
)

var dumpDir *string

func init() {
	dumpDir = runCmd.Flags().String("dump", "", "Directory to persist raw portal exchanges and unrecognized responses to.")
	rootCmd.AddCommand(runCmd)
}

func buildNotifier(cfg Config) notify.Notifier {
	sinks := []notify.Notifier{notify.Log{}}

	if cfg.Telegram.BotToken != "" {
		n, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatId)
		if err != nil {
			serviceutil.Fatal("failed to initialize telegram notifier", err)
		}
		sinks = append(sinks, n)
	}
	if cfg.Email != nil {
		n, err := email.New(*cfg.Email)
		if err != nil {
			serviceutil.Fatal("failed to initialize email notifier", err)
		}
		sinks = append(sinks, n)
	}

	return notify.Multi(sinks...)
}

var runCmd = &cobra.Command{
	Use:   "run [--dump <dir>]",
	Short: "Attempts registration for every configured target until all are secured.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		if len(cfg.Targets) == 0 {
			serviceutil.Fatal("nothing to do", fmt.Errorf("no targets configured"))
		}
		rules, err := cfg.ruleTable()
		if err != nil {
			serviceutil.Fatal("invalid rule table", err)
		}

		var dump restyutil.InstrumentOutput
		if *dumpDir != "" {
			out := restyutil.NewFilesystemOutput(*dumpDir)
			siakad.SetInstrumentOutput(out)
			dump = out
		}

		client, err := siakad.NewClient(cfg.clientOptions())
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}

		svc := warkrs.New(client, buildNotifier(cfg), warkrs.Options{
			Targets:           cfg.Targets,
			CycleDelay:        time.Duration(cfg.Settings.DelaySeconds) * time.Second,
			InterRequestDelay: time.Duration(cfg.Settings.InterRequestDelay) * time.Second,
			VerificationDelay: time.Duration(cfg.Settings.VerificationDelay) * time.Second,
			MaxCycles:         cfg.Settings.MaxCycles,
			Rules:             rules,
			DumpOutput:        dump,
		})

		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		report := svc.Run(ctx)

		slog.Info("run finished",
			"state", report.State.String(),
			"cycles", report.Cycles,
			"secured", len(report.Secured),
			"pending", len(report.Pending),
		)

		switch report.State {
		case warkrs.StateAllSecured:
			Exit(0)
		case warkrs.StateSessionDead:
			Exit(1)
		default:
			Exit(2)
		}
	},
}
