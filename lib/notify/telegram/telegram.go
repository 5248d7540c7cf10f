package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"warkrs/lib/scrapers/siakad"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends run lifecycle events to a Telegram chat. Send failures
// are logged and swallowed, a dead bot must not take the run down with it.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatId int64
}

func New(token, chatId string) (*Notifier, error) {
	id, err := strconv.ParseInt(chatId, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse chat id %q: %w", chatId, err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Notifier{bot: bot, chatId: id}, nil
}

func (n *Notifier) send(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(n.chatId, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		// retry without formatting, the portal's messages sometimes
		// contain characters telegram rejects as bad HTML
		msg.ParseMode = ""
		if _, err := n.bot.Send(msg); err != nil {
			slog.WarnContext(ctx, "failed to send telegram notification", "err", err)
		}
	}
}

func (n *Notifier) RunStarted(ctx context.Context, targets []siakad.Course) {
	n.send(ctx, runStartedMessage(targets, time.Now()))
}

func (n *Notifier) CourseSecured(ctx context.Context, course siakad.Course, detail string) {
	n.send(ctx, courseSecuredMessage(course, detail, time.Now()))
}

func (n *Notifier) RunCompleted(ctx context.Context, securedCount int) {
	n.send(ctx, runCompletedMessage(securedCount, time.Now()))
}

func (n *Notifier) Fatal(ctx context.Context, reason string) {
	n.send(ctx, fatalMessage(reason, time.Now()))
}

// SendTest delivers a connectivity test message, used by the CLI.
// Unlike the lifecycle events this reports its error, the whole point
// is finding out whether the bot works.
func (n *Notifier) SendTest(ctx context.Context) error {
	msg := tgbotapi.NewMessage(n.chatId, fmt.Sprintf(
		"warkrs test message, sent %s",
		time.Now().Format("02/01/2006 15:04:05"),
	))
	_, err := n.bot.Send(msg)
	return err
}

const timeFormat = "02/01/2006 15:04:05"

func runStartedMessage(targets []siakad.Course, now time.Time) string {
	var lines []string
	for _, t := range targets {
		lines = append(lines, fmt.Sprintf("• <code>%s</code> (kelas %s)", t.Code, t.ClassId))
	}
	return fmt.Sprintf(
		"🚀 <b>WARKRS STARTED</b>\n\n📅 %s\n\n🎯 <b>Targets:</b>\n%s",
		now.Format(timeFormat),
		strings.Join(lines, "\n"),
	)
}

func courseSecuredMessage(course siakad.Course, detail string, now time.Time) string {
	msg := fmt.Sprintf(
		"✅ <b>COURSE SECURED</b>\n\n📅 %s\n📚 <code>%s</code> (kelas %s)",
		now.Format(timeFormat),
		course.Code,
		course.ClassId,
	)
	if detail != "" {
		msg += fmt.Sprintf("\n💬 %s", detail)
	}
	return msg
}

func runCompletedMessage(securedCount int, now time.Time) string {
	return fmt.Sprintf(
		"🎉 <b>ALL TARGETS SECURED</b>\n\n📅 %s\n📚 %d course(s) registered.",
		now.Format(timeFormat),
		securedCount,
	)
}

func fatalMessage(reason string, now time.Time) string {
	return fmt.Sprintf(
		"🔒 <b>RUN ABORTED</b>\n\n📅 %s\n🚨 %s\n\n"+
			"Log in to the portal again, update the session cookies in your config, and restart.",
		now.Format(timeFormat),
		reason,
	)
}
