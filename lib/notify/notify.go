// Package notify delivers run lifecycle events to the operator.
// Delivery is fire-and-forget: a sink that cannot send logs and moves
// on, the registration loop must never stall or abort because a
// notification failed.
package notify

import (
	"context"
	"log/slog"

	"warkrs/lib/scrapers/siakad"
)

type Notifier interface {
	RunStarted(ctx context.Context, targets []siakad.Course)
	// detail carries the portal's own message when one was extracted,
	// or the course display name, may be empty
	CourseSecured(ctx context.Context, course siakad.Course, detail string)
	RunCompleted(ctx context.Context, securedCount int)
	Fatal(ctx context.Context, reason string)
}

// Log is the always-available sink, it just writes to slog.
type Log struct{}

func (Log) RunStarted(ctx context.Context, targets []siakad.Course) {
	codes := make([]string, len(targets))
	for i, t := range targets {
		codes[i] = t.Code
	}
	slog.InfoContext(ctx, "run started", "targets", codes)
}

func (Log) CourseSecured(ctx context.Context, course siakad.Course, detail string) {
	slog.InfoContext(ctx, "course secured",
		"code", course.Code,
		"class_id", course.ClassId,
		"detail", detail,
	)
}

func (Log) RunCompleted(ctx context.Context, securedCount int) {
	slog.InfoContext(ctx, "run completed", "secured", securedCount)
}

func (Log) Fatal(ctx context.Context, reason string) {
	slog.ErrorContext(ctx, "run aborted", "reason", reason)
}

type multi []Notifier

// Multi fans events out to every sink in order.
func Multi(sinks ...Notifier) Notifier {
	return multi(sinks)
}

func (m multi) RunStarted(ctx context.Context, targets []siakad.Course) {
	for _, n := range m {
		n.RunStarted(ctx, targets)
	}
}

func (m multi) CourseSecured(ctx context.Context, course siakad.Course, detail string) {
	for _, n := range m {
		n.CourseSecured(ctx, course, detail)
	}
}

func (m multi) RunCompleted(ctx context.Context, securedCount int) {
	for _, n := range m {
		n.RunCompleted(ctx, securedCount)
	}
}

func (m multi) Fatal(ctx context.Context, reason string) {
	for _, n := range m {
		n.Fatal(ctx, reason)
	}
}
