package warkrs

import (
	"context"
	"fmt"
	"testing"

	"warkrs/lib/scrapers/siakad"
	"warkrs/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	telemetry.InitSlog(false)
	m.Run()
}

type scripted struct {
	res siakad.Response
	err error
}

// fakePortal serves canned responses. register responses pop off a
// per-class queue, an attempt against an exhausted queue fails the test
// so no course can be attempted more often than the scenario scripts.
type fakePortal struct {
	t          *testing.T
	dirs       []siakad.Directory
	dirErr     error
	script     map[string][]scripted
	calls      []string
	dirCalls   int
	onRegister func()
}

func (f *fakePortal) Directory(ctx context.Context) (siakad.Directory, error) {
	f.dirCalls++
	if f.dirErr != nil {
		return siakad.Directory{}, f.dirErr
	}
	if len(f.dirs) == 0 {
		return siakad.Directory{}, nil
	}
	dir := f.dirs[0]
	if len(f.dirs) > 1 {
		f.dirs = f.dirs[1:]
	}
	return dir, nil
}

func (f *fakePortal) Register(ctx context.Context, classId string) (siakad.Response, error) {
	f.calls = append(f.calls, classId)
	if f.onRegister != nil {
		f.onRegister()
	}
	q := f.script[classId]
	if len(q) == 0 {
		f.t.Fatalf("unexpected register call for class %s", classId)
	}
	next := q[0]
	f.script[classId] = q[1:]
	return next.res, next.err
}

type recordingNotifier struct {
	started   int
	secured   []string
	completed []int
	fatals    []string
}

func (r *recordingNotifier) RunStarted(ctx context.Context, targets []siakad.Course) {
	r.started++
}

func (r *recordingNotifier) CourseSecured(ctx context.Context, course siakad.Course, detail string) {
	r.secured = append(r.secured, course.Code)
}

func (r *recordingNotifier) RunCompleted(ctx context.Context, securedCount int) {
	r.completed = append(r.completed, securedCount)
}

func (r *recordingNotifier) Fatal(ctx context.Context, reason string) {
	r.fatals = append(r.fatals, reason)
}

var (
	course1 = siakad.Course{Code: "SD25-41301", ClassId: "37813"}
	course2 = siakad.Course{Code: "SD25-41302", ClassId: "37814"}

	quotaFullBody = `<script>alert("Kuota kelas sudah penuh")</script>`
	successBody   = `<script>alert("Mata kuliah berhasil ditambahkan")</script>`
	sessionBody   = `<html><body>Sesi Anda telah berakhir, silakan login</body></html>`
	alreadyBody   = `<script>alert("Mata kuliah sudah diambil")</script>`
)

func ok(body string) scripted {
	return scripted{res: siakad.Response{Status: 200, Body: body}}
}

func TestQuotaFullThenSuccess(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(quotaFullBody), ok(successBody)},
		},
	}
	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	require.Equal(t, 2, report.Cycles)
	require.Equal(t, []string{"37813", "37813"}, portal.calls)
	require.Equal(t, []string{"SD25-41301"}, sink.secured)
	require.Equal(t, []int{1}, sink.completed)
	require.Empty(t, sink.fatals)
}

func TestSessionExpiryAbandonsRestOfCycle(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(sessionBody)},
			// no script for course2: any attempt against it fails the test
		},
	}
	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: []siakad.Course{course1, course2}})

	report := svc.Run(context.Background())

	require.Equal(t, StateSessionDead, report.State)
	require.Equal(t, 1, report.Cycles)
	require.Equal(t, []string{"37813"}, portal.calls)
	require.Len(t, report.Pending, 2)
	require.Empty(t, report.Secured)
	require.Len(t, sink.fatals, 1)
	require.Empty(t, sink.completed)
}

type recordingDump struct {
	entries map[string]string
}

func (d *recordingDump) Write(id string, contents string) {
	if d.entries == nil {
		d.entries = map[string]string{}
	}
	d.entries[id] = contents
}

func TestUnknownResponseStaysPending(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok("")},
		},
	}
	sink := &recordingNotifier{}
	dump := &recordingDump{}
	svc := New(portal, sink, Options{
		Targets:    []siakad.Course{course1},
		MaxCycles:  1,
		DumpOutput: dump,
	})

	report := svc.Run(context.Background())

	require.Equal(t, StateCancelled, report.State)
	require.Len(t, report.Pending, 1)
	require.Empty(t, report.Secured)
	require.Empty(t, sink.secured)
	// initial reconcile plus the verification re-read
	require.Equal(t, 2, portal.dirCalls)
	require.Len(t, dump.entries, 1)
}

func TestTargetsAlreadyEnrolledAtStart(t *testing.T) {
	portal := &fakePortal{
		t: t,
		dirs: []siakad.Directory{{
			Enrolled: []siakad.Course{
				{Code: course1.Code},
				{Code: course2.Code},
			},
		}},
	}
	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: []siakad.Course{course1, course2}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	require.Equal(t, 0, report.Cycles)
	require.Empty(t, portal.calls)
	require.Equal(t, []string{"SD25-41301", "SD25-41302"}, sink.secured)
	require.Equal(t, []int{2}, sink.completed)
}

func TestAlreadyEnrolledMarkerSecures(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(alreadyBody)},
		},
	}
	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	require.Equal(t, []string{"SD25-41301"}, sink.secured)
}

func TestNetworkFailureRetriedNextCycle(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {
				{err: fmt.Errorf("connection reset by peer")},
				ok(successBody),
			},
		},
	}
	svc := New(portal, &recordingNotifier{}, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	require.Equal(t, 2, report.Cycles)
}

func TestCyclePanicDoesNotKillRun(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(successBody)},
		},
	}
	registerCalls := 0
	portal.onRegister = func() {
		registerCalls++
		if registerCalls == 1 {
			panic("unexpected html shape")
		}
	}
	svc := New(portal, &recordingNotifier{}, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	require.Equal(t, 2, report.Cycles)
}

func TestRunStateInvariants(t *testing.T) {
	targets := []siakad.Course{
		course1,
		course2,
		{Code: "SD25-41303", ClassId: "37815"},
	}
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			// one course secured per cycle, worst case ordering
			"37813": {ok(successBody)},
			"37814": {ok(quotaFullBody), ok(successBody)},
			"37815": {ok(quotaFullBody), ok(quotaFullBody), ok(successBody)},
		},
	}
	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: targets})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	// bounded by the number of targets when each cycle secures at
	// least one course
	require.Equal(t, 3, report.Cycles)
	require.Len(t, report.Secured, 3)
	require.Empty(t, report.Pending)
	// secured courses are never re-attempted, the scripted queues
	// above would fail the test otherwise
	require.Equal(t, []string{
		"37813", "37814", "37815",
		"37814", "37815",
		"37815",
	}, portal.calls)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	portal := &fakePortal{t: t}
	svc := New(portal, &recordingNotifier{}, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(ctx)

	require.Equal(t, StateCancelled, report.State)
	require.Empty(t, portal.calls)
}

func TestCancelledMidCycleSkipsRemainingCourses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(quotaFullBody)},
		},
	}
	portal.onRegister = cancel

	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: []siakad.Course{course1, course2}})

	report := svc.Run(ctx)

	require.Equal(t, StateCancelled, report.State)
	require.Equal(t, []string{"37813"}, portal.calls)
	require.Empty(t, sink.fatals)
}

func TestInitialDirectoryFailureIsNotFatal(t *testing.T) {
	portal := &fakePortal{
		t:      t,
		dirErr: fmt.Errorf("portal is down"),
		script: map[string][]scripted{
			"37813": {ok(successBody)},
		},
	}
	svc := New(portal, &recordingNotifier{}, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
}
