package warkrs

import (
	"context"
	"fmt"
	"testing"

	"warkrs/lib/scrapers/siakad"

	"github.com/stretchr/testify/require"
)

func TestInconclusiveResponseVerifiedAgainstStudyPlan(t *testing.T) {
	portal := &fakePortal{
		t: t,
		dirs: []siakad.Directory{
			{}, // initial reconcile: not enrolled yet
			{Enrolled: []siakad.Course{{Code: course1.Code, Name: "Sains Data"}}},
		},
		script: map[string][]scripted{
			"37813": {ok("<html><body>redirecting...</body></html>")},
		},
	}
	sink := &recordingNotifier{}
	svc := New(portal, sink, Options{Targets: []siakad.Course{course1}})

	report := svc.Run(context.Background())

	require.Equal(t, StateAllSecured, report.State)
	require.Equal(t, 1, report.Cycles)
	require.Equal(t, []string{"SD25-41301"}, sink.secured)
	require.Equal(t, 2, portal.dirCalls)
}

func TestNetworkFailureSkipsVerification(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {{err: fmt.Errorf("dial tcp: i/o timeout")}},
		},
	}
	svc := New(portal, nil, Options{Targets: []siakad.Course{course1}})

	outcome, detail := svc.attempt(context.Background(), course1)

	require.Equal(t, siakad.OutcomeNetworkFailure, outcome)
	require.Empty(t, detail)
	require.Equal(t, 0, portal.dirCalls)
}

func TestAttemptReportsPortalAlertAsDetail(t *testing.T) {
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(successBody)},
		},
	}
	svc := New(portal, nil, Options{Targets: []siakad.Course{course1}})

	outcome, detail := svc.attempt(context.Background(), course1)

	require.Equal(t, siakad.OutcomeEnrolled, outcome)
	require.Equal(t, "Mata kuliah berhasil ditambahkan", detail)
}

func TestVerificationFailureKeepsUnknown(t *testing.T) {
	portal := &fakePortal{
		t:      t,
		dirErr: fmt.Errorf("portal is down"),
		script: map[string][]scripted{
			"37813": {ok("")},
		},
	}
	svc := New(portal, nil, Options{Targets: []siakad.Course{course1}})

	outcome, _ := svc.attempt(context.Background(), course1)

	require.Equal(t, siakad.OutcomeUnknown, outcome)
}

func TestCustomRuleTableOverridesDefaults(t *testing.T) {
	rules := []siakad.Rule{
		{Outcome: siakad.OutcomeEnrolled, Markers: []string{"sukses menambahkan"}},
	}
	portal := &fakePortal{
		t: t,
		script: map[string][]scripted{
			"37813": {ok(`<script>alert("Sukses menambahkan mata kuliah")</script>`)},
		},
	}
	svc := New(portal, nil, Options{Targets: []siakad.Course{course1}, Rules: rules})

	outcome, _ := svc.attempt(context.Background(), course1)

	require.Equal(t, siakad.OutcomeEnrolled, outcome)
}
