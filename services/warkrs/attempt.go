package warkrs

import (
	"context"
	"fmt"
	"log/slog"

	"warkrs/lib/scrapers/siakad"

	"go.opentelemetry.io/otel/attribute"
)

// attempt issues exactly one registration request for a course and
// interprets the response. It never touches RunState, bookkeeping
// belongs to the orchestrator.
func (s *Service) attempt(ctx context.Context, course siakad.Course) (siakad.Outcome, string) {
	ctx, span := tracer.Start(ctx, "service:attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("course", course.Code),
		attribute.String("class_id", course.ClassId),
	)

	res, err := s.portal.Register(ctx, course.ClassId)
	if err != nil {
		span.RecordError(err)
		return siakad.OutcomeNetworkFailure, ""
	}

	outcome := siakad.ClassifyWith(s.rules, res.Body, res.Status)
	detail := siakad.ExtractAlert(res.Body)
	if detail != "" {
		slog.InfoContext(ctx, "portal message",
			"code", course.Code,
			"message", detail,
		)
	}

	if outcome == siakad.OutcomeUnknown {
		s.dumpUnknown(ctx, course, res)
		outcome = s.verifyRegistration(ctx, course, outcome)
	}

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	return outcome, detail
}

// verifyRegistration handles the portal's habit of answering a
// successful save with a page no rule recognizes: after a short pause
// the study plan listing is the ground truth.
func (s *Service) verifyRegistration(ctx context.Context, course siakad.Course, fallback siakad.Outcome) siakad.Outcome {
	if err := sleepCtx(ctx, s.opts.VerificationDelay); err != nil {
		return fallback
	}

	dir, err := s.portal.Directory(ctx)
	if err != nil {
		slog.WarnContext(ctx, "verification directory read failed",
			"code", course.Code,
			"err", err,
		)
		return fallback
	}
	if dir.IsEnrolled(course.Code) {
		slog.InfoContext(ctx, "inconclusive response verified against study plan",
			"code", course.Code,
		)
		return siakad.OutcomeEnrolled
	}
	return fallback
}

// dumpUnknown persists the raw body once, it is never parsed a second
// time. flagged at warning level so the operator can extend the rule
// table offline.
func (s *Service) dumpUnknown(ctx context.Context, course siakad.Course, res siakad.Response) {
	slog.WarnContext(ctx, "unrecognized portal response",
		"code", course.Code,
		"status", res.Status,
		"body_length", len(res.Body),
	)
	if s.opts.DumpOutput == nil {
		return
	}
	s.dumpSeq++
	id := fmt.Sprintf("unknown-%s-%d.html", course.Code, s.dumpSeq)
	s.opts.DumpOutput.Write(id, res.Body)
}
