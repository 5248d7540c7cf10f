package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"warkrs/lib/scrapers/siakad"

	"github.com/jordan-wright/email"
)

type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Notifier delivers lifecycle events over SMTP, for operators who would
// rather get mail than run a Telegram bot. Best-effort like every sink.
type Notifier struct {
	cfg Config
}

func New(cfg Config) (*Notifier, error) {
	if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("email notifier requires host, from and to")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Notifier{cfg: cfg}, nil
}

func (n *Notifier) send(ctx context.Context, subject, body string) {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{n.cfg.To}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	err := e.Send(addr, smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host))
	if err != nil {
		slog.WarnContext(ctx, "failed to send email notification", "subject", subject, "err", err)
	}
}

func (n *Notifier) RunStarted(ctx context.Context, targets []siakad.Course) {
	codes := make([]string, len(targets))
	for i, t := range targets {
		codes[i] = fmt.Sprintf("%s (kelas %s)", t.Code, t.ClassId)
	}
	n.send(ctx, "[warkrs] run started", fmt.Sprintf(
		"Registration automation started.\n\nTargets:\n%s\n",
		strings.Join(codes, "\n"),
	))
}

func (n *Notifier) CourseSecured(ctx context.Context, course siakad.Course, detail string) {
	body := fmt.Sprintf("Secured %s (kelas %s).\n", course.Code, course.ClassId)
	if detail != "" {
		body += fmt.Sprintf("Portal message: %s\n", detail)
	}
	n.send(ctx, fmt.Sprintf("[warkrs] secured %s", course.Code), body)
}

func (n *Notifier) RunCompleted(ctx context.Context, securedCount int) {
	n.send(ctx, "[warkrs] all targets secured", fmt.Sprintf(
		"Run finished, %d course(s) registered.\n", securedCount,
	))
}

func (n *Notifier) Fatal(ctx context.Context, reason string) {
	n.send(ctx, "[warkrs] run aborted", fmt.Sprintf(
		"The run stopped: %s\n\nLog in to the portal again, update the session cookies, and restart.\n",
		reason,
	))
}
