// Package warkrs drives repeated registration attempts against the
// portal until every target course is secured, the session dies, or the
// operator cancels.
package warkrs

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"warkrs/lib/notify"
	"warkrs/lib/restyutil"
	"warkrs/lib/scrapers/siakad"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("services/warkrs")

// Portal is the slice of the siakad client the orchestrator needs,
// narrowed so tests can run against canned responses.
type Portal interface {
	Directory(ctx context.Context) (siakad.Directory, error)
	Register(ctx context.Context, classId string) (siakad.Response, error)
}

// State is where a run currently stands. Everything except StateRunning
// is terminal.
type State int

const (
	StateRunning State = iota
	StateAllSecured
	StateSessionDead
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAllSecured:
		return "all_secured"
	case StateSessionDead:
		return "session_dead"
	case StateCancelled:
		return "cancelled"
	}
	return "running"
}

// RunState is owned exclusively by the orchestrator, no other component
// reads or writes it. Courses only ever move from Pending to Secured,
// never back, and nothing is added after the run starts.
type RunState struct {
	Pending      []siakad.Course
	Secured      []siakad.Course
	Cycle        int
	SessionAlive bool
}

func newRunState(targets []siakad.Course) *RunState {
	return &RunState{
		Pending:      slices.Clone(targets),
		SessionAlive: true,
	}
}

func (s *RunState) secure(course siakad.Course) {
	for i, c := range s.Pending {
		if c.Code == course.Code && c.ClassId == course.ClassId {
			s.Pending = slices.Delete(s.Pending, i, i+1)
			s.Secured = append(s.Secured, course)
			return
		}
	}
}

type Options struct {
	// attempt priority order, attempted first-declared-first each cycle
	Targets []siakad.Course
	// pause between full passes over the pending set
	CycleDelay time.Duration
	// pause between registration requests within one cycle
	InterRequestDelay time.Duration
	// pause before re-reading the directory to verify an inconclusive
	// registration response
	VerificationDelay time.Duration
	// safety valve, zero means unbounded. runs are unbounded by
	// default on purpose: nobody knows when the portal opens the
	// registration window.
	MaxCycles int
	// classification rule table, nil means siakad.DefaultRules
	Rules []siakad.Rule
	// when set, unrecognized response bodies are persisted here for
	// offline diagnosis
	DumpOutput restyutil.InstrumentOutput
}

type Service struct {
	portal   Portal
	notifier notify.Notifier
	opts     Options
	rules    []siakad.Rule
	runId    string
	dumpSeq  int
}

func New(portal Portal, notifier notify.Notifier, opts Options) *Service {
	if notifier == nil {
		notifier = notify.Log{}
	}
	rules := opts.Rules
	if rules == nil {
		rules = siakad.DefaultRules
	}
	return &Service{
		portal:   portal,
		notifier: notifier,
		opts:     opts,
		rules:    rules,
		runId:    uuid.NewString(),
	}
}

// Report is what Run hands back once a terminal state is reached.
type Report struct {
	State   State
	Secured []siakad.Course
	Pending []siakad.Course
	Cycles  int
}

func (s *Service) report(state State, run *RunState) Report {
	return Report{
		State:   state,
		Secured: slices.Clone(run.Secured),
		Pending: slices.Clone(run.Pending),
		Cycles:  run.Cycle,
	}
}

// Run executes cycles until every target is secured, the session dies,
// the context is cancelled, or the optional cycle limit trips.
func (s *Service) Run(ctx context.Context) Report {
	ctx, span := tracer.Start(ctx, "service:Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", s.runId))

	run := newRunState(s.opts.Targets)
	slog.InfoContext(ctx, "starting registration run",
		"run_id", s.runId,
		"targets", len(run.Pending),
	)
	s.notifier.RunStarted(ctx, s.opts.Targets)

	// courses already on the study plan need no registration request
	s.reconcileDirectory(ctx, run)
	if len(run.Pending) == 0 {
		s.notifier.RunCompleted(ctx, len(run.Secured))
		return s.report(StateAllSecured, run)
	}

	// a run of cycles where every attempt failed at the transport level
	// usually means the portal is drowning, back off instead of
	// hammering it at the normal cadence
	netBackoff := backoff.NewExponentialBackOff()
	netBackoff.InitialInterval = s.opts.CycleDelay
	netBackoff.MaxInterval = s.opts.CycleDelay * 8
	netBackoff.MaxElapsedTime = 0
	netBackoff.Reset()

	for {
		if ctx.Err() != nil {
			return s.report(StateCancelled, run)
		}

		run.Cycle++
		slog.InfoContext(ctx, "starting cycle",
			"run_id", s.runId,
			"cycle", run.Cycle,
			"pending", len(run.Pending),
			"secured", len(run.Secured),
		)

		stats := s.safeCycle(ctx, run)
		if stats.cancelled {
			return s.report(StateCancelled, run)
		}
		if !run.SessionAlive {
			return s.report(StateSessionDead, run)
		}
		if len(run.Pending) == 0 {
			s.notifier.RunCompleted(ctx, len(run.Secured))
			return s.report(StateAllSecured, run)
		}
		if s.opts.MaxCycles > 0 && run.Cycle >= s.opts.MaxCycles {
			slog.WarnContext(ctx, "cycle limit reached, stopping",
				"cycles", run.Cycle,
				"pending", len(run.Pending),
			)
			return s.report(StateCancelled, run)
		}

		delay := s.opts.CycleDelay
		if stats.attempts > 0 && stats.nonNetwork == 0 {
			delay = netBackoff.NextBackOff()
			slog.WarnContext(ctx, "whole cycle failed at transport level, backing off",
				"delay", delay,
			)
		} else {
			netBackoff.Reset()
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return s.report(StateCancelled, run)
		}
	}
}

// safeCycle keeps a panicking cycle from killing the run, whatever blew
// up is retried after the normal delay. Session expiry and cancellation
// still terminate as usual.
func (s *Service) safeCycle(ctx context.Context, run *RunState) (stats cycleStats) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "cycle panicked", "cycle", run.Cycle, "panic", r)
		}
	}()
	return s.runCycle(ctx, run)
}

type cycleStats struct {
	attempts   int
	nonNetwork int
	cancelled  bool
}

// runCycle makes one pass over the pending set in declaration order.
// Session expiry abandons the rest of the pass, attempting the
// remaining courses against a known-dead session would be pointless.
func (s *Service) runCycle(ctx context.Context, run *RunState) cycleStats {
	var stats cycleStats

	for _, course := range slices.Clone(run.Pending) {
		if ctx.Err() != nil {
			stats.cancelled = true
			return stats
		}

		outcome, detail := s.attempt(ctx, course)
		if ctx.Err() != nil {
			// a request aborted by cancellation must not be misread
			// as a network failure
			stats.cancelled = true
			return stats
		}
		stats.attempts++
		if outcome != siakad.OutcomeNetworkFailure {
			stats.nonNetwork++
		}

		switch outcome {
		case siakad.OutcomeEnrolled, siakad.OutcomeAlreadyEnrolled:
			run.secure(course)
			s.notifier.CourseSecured(ctx, course, detail)
		case siakad.OutcomeSessionExpired:
			run.SessionAlive = false
			s.notifier.Fatal(ctx, "portal session expired, update the session cookies and restart")
			return stats
		default:
			// retryable, absorbed by the next cycle. per-attempt
			// notifications would be pure noise.
			slog.WarnContext(ctx, "attempt did not secure course",
				"code", course.Code,
				"class_id", course.ClassId,
				"outcome", outcome.String(),
				"detail", detail,
			)
		}

		if len(run.Pending) > 0 {
			if err := sleepCtx(ctx, s.opts.InterRequestDelay); err != nil {
				stats.cancelled = true
				return stats
			}
		}
	}

	return stats
}

// reconcileDirectory moves targets that are already on the study plan
// straight to secured. Best-effort: if the page cannot be read or
// parsed the first cycle will sort it out anyway.
func (s *Service) reconcileDirectory(ctx context.Context, run *RunState) {
	ctx, span := tracer.Start(ctx, "service:reconcileDirectory")
	defer span.End()

	dir, err := s.portal.Directory(ctx)
	if err != nil {
		slog.WarnContext(ctx, "initial directory read failed", "err", err)
		return
	}

	for _, course := range slices.Clone(run.Pending) {
		if !dir.IsEnrolled(course.Code) {
			continue
		}
		run.secure(course)
		s.notifier.CourseSecured(ctx, course, dir.DisplayName(course.Code))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
