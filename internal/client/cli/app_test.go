package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/choirsync/internal/client/models"
	"github.com/dmitrijs2005/choirsync/internal/client/services"
	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/offline"
)

func TestIsLoggedIn(t *testing.T) {
	app := &App{}
	if app.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == false without a session")
	}
	app.setSession(&models.Session{Email: "a@example.org"})
	if !app.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == true with a session")
	}
}

func TestSetMode_ChangesAndPrintsOnce(t *testing.T) {
	app, out := newTestApp(&fakeAuth{})

	app.setMode(ModeOnline)
	if app.mode != ModeOnline || out.String() != "Switched to online mode\n" {
		t.Fatalf("mode=%q out=%q", app.mode, out.String())
	}

	out.Reset()
	app.setMode(ModeOnline)
	if out.Len() != 0 {
		t.Fatalf("expected no output when mode doesn't change, got: %q", out.String())
	}

	app.setMode(ModeOffline)
	if app.mode != ModeOffline || !strings.Contains(out.String(), "offline") {
		t.Fatalf("mode=%q out=%q", app.mode, out.String())
	}
}

func TestGetStatus(t *testing.T) {
	app, _ := newTestApp(&fakeAuth{})
	if got := app.getStatus(); got != "" {
		t.Fatalf("status = %q", got)
	}

	app.mode = ModeOffline
	if got := app.getStatus(); got != "(offline)" {
		t.Fatalf("status = %q", got)
	}

	app.session = &models.Session{Email: "a@example.org"}
	app.store = &fakeStore{pending: []offline.Entry{{}, {}}}
	if got := app.getStatus(); got != "(a@example.org offline, 2 queued)" {
		t.Fatalf("status = %q", got)
	}
}

func TestRestoreSession(t *testing.T) {
	tests := []struct {
		name     string
		auth     *fakeAuth
		loggedIn bool
		out      string
	}{
		{
			name:     "stored session",
			auth:     &fakeAuth{sess: models.Session{Email: "a@example.org"}},
			loggedIn: true,
			out:      "Signed in as a@example.org",
		},
		{
			name: "none",
			auth: &fakeAuth{sessErr: services.ErrNotLoggedIn},
		},
		{
			name: "expired",
			auth: &fakeAuth{sessErr: common.ErrTokenExpired},
			out:  "please log in",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, out := newTestApp(tt.auth)
			app.restoreSession(context.Background())
			if app.isLoggedIn() != tt.loggedIn {
				t.Fatalf("loggedIn = %v", app.isLoggedIn())
			}
			if tt.out == "" && out.Len() != 0 {
				t.Fatalf("unexpected output %q", out.String())
			}
			if !strings.Contains(out.String(), tt.out) {
				t.Fatalf("output %q lacks %q", out.String(), tt.out)
			}
		})
	}
}

func TestOnUnauthorized_DropsSession(t *testing.T) {
	app, out := newTestApp(&fakeAuth{})
	app.setSession(&models.Session{})

	app.onUnauthorized(context.Background())

	if app.isLoggedIn() || !strings.Contains(out.String(), "log in again") {
		t.Fatalf("loggedIn=%v out=%q", app.isLoggedIn(), out.String())
	}
}

func TestTrackConnectivity(t *testing.T) {
	app, _ := newTestApp(&fakeAuth{})
	ch := make(chan bool)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.trackConnectivity(ctx, ch)
		close(done)
	}()

	ch <- false
	ch <- true
	ch <- false
	// unbuffered: the third send returns once the second was applied
	cancel()
	<-done

	app.mu.Lock()
	defer app.mu.Unlock()
	if app.mode != ModeOffline {
		t.Fatalf("mode = %q", app.mode)
	}
}

func TestPrintEvents(t *testing.T) {
	app, out := newTestApp(&fakeAuth{})
	ch := make(chan offline.Event, 8)
	ch <- offline.Event{Outcome: offline.OutcomeEnqueued, Kind: offline.KindAttendanceMark}
	ch <- offline.Event{Outcome: offline.OutcomeCommitted, Kind: offline.KindAttendanceMark}
	ch <- offline.Event{Outcome: offline.OutcomeDiscarded, Kind: offline.KindUserSave, Err: "status 403"}
	ch <- offline.Event{Outcome: offline.OutcomeParked, Kind: offline.KindTransactionRecord, Attempts: 11}
	ch <- offline.Event{
		Outcome: offline.OutcomeCommitted,
		Kind:    offline.KindReportExport,
		Action:  offline.ExportReportCommit{Report: "attendance", Location: "/tmp/attendance.pdf"},
	}
	ch <- offline.Event{Outcome: offline.OutcomeReset}
	close(ch)

	app.printEvents(context.Background(), ch)

	want := strings.Join([]string{
		"[sync] attendance/mark saved",
		"[sync] users/save rejected by the server and rolled back: status 403",
		"[sync] transactions/record gave up after 11 attempts; run 'sync' to retry",
		"[sync] attendance report saved to /tmp/attendance.pdf",
		"[sync] local data was from an older version and has been reset",
	}, "\n") + "\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestPrintEvents_StopsOnCancel(t *testing.T) {
	app, _ := newTestApp(&fakeAuth{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		app.printEvents(ctx, make(chan offline.Event))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("printEvents did not return")
	}
}

func TestClose_NilSafe(t *testing.T) {
	app := &App{}
	app.close(context.Background())

	app.authService = &fakeAuth{}
	app.close(context.Background())
}

var errFake = errors.New("fake failure")
