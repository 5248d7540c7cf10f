package commands

import (
	"fmt"
	"log/slog"

	"warkrs/lib/notify/telegram"
	"warkrs/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(notifyTestCmd)
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test",
	Short: "Sends a test message through the configured Telegram bot.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		if cfg.Telegram.BotToken == "" {
			serviceutil.Fatal("telegram is not configured", fmt.Errorf("telegram.bot_token is empty"))
		}

		n, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.ChatId)
		if err != nil {
			serviceutil.Fatal("failed to initialize telegram notifier", err)
		}
		if err := n.SendTest(cmd.Context()); err != nil {
			serviceutil.Fatal("failed to send test message", err)
		}
		slog.Info("test message delivered", "chat_id", cfg.Telegram.ChatId)
	},
}
