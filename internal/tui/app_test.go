package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ravgrowth/ravbot/internal/lifecycle"
	"github.com/ravgrowth/ravbot/internal/model"
	"github.com/ravgrowth/ravbot/internal/pipeline"
	"github.com/ravgrowth/ravbot/internal/present"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	subs []model.Subscription
	err  error
}

func (f *fakeStore) ListSubscriptions(_ context.Context, _ string) ([]model.Subscription, error) {
	return f.subs, f.err
}

type fakeLifecycle struct {
	cancelled []string
	caller    string
	history   map[string][]model.SubscriptionAction
}

func (f *fakeLifecycle) Cancel(_ context.Context, caller, id string) (lifecycle.Result, error) {
	f.caller = caller
	f.cancelled = append(f.cancelled, id)
	return lifecycle.Result{Status: model.StatusCancelled}, nil
}

func (f *fakeLifecycle) History(_ context.Context, _, id string, _ int) ([]model.SubscriptionAction, error) {
	return f.history[id], nil
}

type fakeDetector struct {
	accounts int
}

func (f fakeDetector) RunWithProgress(_ context.Context, _ string, fn pipeline.ProgressFunc) (pipeline.Result, error) {
	for i := 1; i <= f.accounts; i++ {
		fn(i, f.accounts)
	}
	return pipeline.Result{Found: []string{"Netflix"}, Inserted: 1, Accounts: f.accounts}, nil
}

var day0 = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func sub(id, merchant, amount string, status model.Status, day int) model.Subscription {
	return model.Subscription{
		ID:           id,
		UserID:       "u1",
		MerchantName: merchant,
		Amount:       decimal.RequireFromString(amount),
		Interval:     "monthly",
		Status:       status,
		CreatedAt:    day0.AddDate(0, 0, day),
		UpdatedAt:    day0.AddDate(0, 0, day),
	}
}

func testSubs() []model.Subscription {
	return []model.Subscription{
		sub("s1", "Netflix", "15.49", model.StatusDetected, 1),
		sub("s2", "Netflix, Inc.", "17.99", model.StatusDetected, 2),
		sub("s3", "Spotify", "10.99", model.StatusDetected, 0),
		sub("s4", "Hulu", "7.99", model.StatusCancelled, 3),
	}
}

func newTestApp(t *testing.T) (App, *fakeLifecycle) {
	t.Helper()
	lc := &fakeLifecycle{history: map[string][]model.SubscriptionAction{}}
	a := NewApp(Deps{
		UserID:    "u1",
		Store:     &fakeStore{subs: testSubs()},
		Lifecycle: lc,
		Detector:  fakeDetector{accounts: 2},
	})
	a = update(t, a, tea.WindowSizeMsg{Width: 120, Height: 30})
	a = update(t, a, loadSubsCmd(a.deps)())
	return a, lc
}

func update(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	next, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return next
}

func press(t *testing.T, a App, key string) App {
	t.Helper()
	return update(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
}

func merchants(rows []present.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Merchant
	}
	return out
}

func TestLoadMergesAndHidesCancelled(t *testing.T) {
	a, _ := newTestApp(t)

	got := strings.Join(merchants(a.rows), ",")
	if got != "Netflix,Spotify" {
		t.Fatalf("rows = %s, want Netflix,Spotify", got)
	}
	if !a.rows[0].Amount.Equal(decimal.RequireFromString("17.99")) {
		t.Fatalf("merged amount = %s, want 17.99", a.rows[0].Amount)
	}
	if a.totals.Active != 2 {
		t.Fatalf("active = %d, want 2", a.totals.Active)
	}
}

func TestSortAndVisibilityKeys(t *testing.T) {
	a, _ := newTestApp(t)

	a = press(t, a, "f")
	if got := strings.Join(merchants(a.rows), ","); got != "Spotify,Netflix" {
		t.Fatalf("first-seen order = %s", got)
	}

	a = press(t, a, "a")
	if got := strings.Join(merchants(a.rows), ","); got != "Spotify,Netflix,Hulu" {
		t.Fatalf("with cancelled = %s", got)
	}

	a = press(t, a, "p")
	if got := strings.Join(merchants(a.rows), ","); got != "Netflix,Spotify,Hulu" {
		t.Fatalf("price order = %s", got)
	}
}

func TestCursorFollowsMerchantAcrossResort(t *testing.T) {
	a, _ := newTestApp(t)

	a = press(t, a, "j")
	if r, _ := a.selected(); r.Merchant != "Spotify" {
		t.Fatalf("selected = %s, want Spotify", r.Merchant)
	}
	a = press(t, a, "f")
	if a.cursor != 0 {
		t.Fatalf("cursor = %d, want 0 after resort", a.cursor)
	}
	if r, _ := a.selected(); r.Merchant != "Spotify" {
		t.Fatalf("selected after resort = %s, want Spotify", r.Merchant)
	}

	a = press(t, a, "k")
	if a.cursor != 0 {
		t.Fatalf("cursor moved above first row: %d", a.cursor)
	}
}

func TestCancelOpensConfirmation(t *testing.T) {
	a, _ := newTestApp(t)

	a = press(t, a, "c")
	if a.confirm == nil {
		t.Fatal("expected confirmation form")
	}
	if a.confirmRow.Merchant != "Netflix" {
		t.Fatalf("confirming %s, want Netflix", a.confirmRow.Merchant)
	}
	if a.confirmYes == nil || *a.confirmYes {
		t.Fatal("confirmation should default to keep")
	}
}

func TestCancelSkipsCancelledRows(t *testing.T) {
	a, _ := newTestApp(t)
	a = press(t, a, "a")
	a = press(t, a, "G")

	a = press(t, a, "c")
	if a.confirm != nil {
		t.Fatal("cancelled row should not open a confirmation")
	}
	if !strings.Contains(a.notice, "already cancelled") {
		t.Fatalf("notice = %q", a.notice)
	}
}

func TestCancelCmdUsesRepresentativeID(t *testing.T) {
	a, lc := newTestApp(t)
	row, _ := a.selected()

	msg := cancelCmd(a.deps, row)()
	done, ok := msg.(cancelDoneMsg)
	if !ok {
		t.Fatalf("cancelCmd returned %T", msg)
	}
	if len(lc.cancelled) != 1 || lc.cancelled[0] != row.ID || lc.caller != "u1" {
		t.Fatalf("cancel called with caller=%s ids=%v", lc.caller, lc.cancelled)
	}

	m, cmd := a.Update(done)
	a = m.(App)
	if cmd == nil {
		t.Fatal("expected a reload after cancel")
	}
	if a.failed || !strings.Contains(a.notice, "Netflix marked Cancelled") {
		t.Fatalf("notice = %q failed=%v", a.notice, a.failed)
	}
}

func TestCancelWarningsAreShown(t *testing.T) {
	a, _ := newTestApp(t)
	a = update(t, a, cancelDoneMsg{
		merchant: "Netflix",
		res:      lifecycle.Result{Status: model.StatusCancelled, Warnings: []string{"audit write failed"}},
	})
	if !a.failed || !strings.Contains(a.notice, "audit write failed") {
		t.Fatalf("notice = %q failed=%v", a.notice, a.failed)
	}
}

func TestDetectStreamsProgressThenResult(t *testing.T) {
	a, _ := newTestApp(t)

	m, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	a = m.(App)
	if !a.running || cmd == nil {
		t.Fatal("r should start detection")
	}

	msg := detectCmd(a.deps, a.loadSub)()
	for i := 0; i < 10; i++ {
		if _, ok := msg.(detectDoneMsg); ok {
			break
		}
		if _, ok := msg.(progressMsg); !ok {
			t.Fatalf("unexpected message %T", msg)
		}
		msg = waitForLoadMsg(a.loadSub)()
	}
	done, ok := msg.(detectDoneMsg)
	if !ok {
		t.Fatalf("never got detectDoneMsg, last %T", msg)
	}

	a = update(t, a, done)
	if a.running {
		t.Fatal("running should clear after detection")
	}
	if a.notice != "Detection: 1 found, 1 new" {
		t.Fatalf("notice = %q", a.notice)
	}
}

func TestDetectSummaryReportsFailedAccounts(t *testing.T) {
	got := detectSummary(pipeline.Result{
		Found:       []string{},
		Accounts:    3,
		FetchErrors: []pipeline.FetchError{{AccountID: "a", Err: errors.New("boom")}},
	})
	if got != "Detection: 0 found, 0 new, 1 of 3 accounts failed" {
		t.Fatalf("summary = %q", got)
	}
}

func TestHistoryShownInDetail(t *testing.T) {
	a, _ := newTestApp(t)
	row, _ := a.selected()
	a = update(t, a, historyMsg{id: row.ID, actions: []model.SubscriptionAction{{
		Action:    model.ActionCancelRequest,
		CreatedAt: day0,
		Details:   map[string]any{"merchant": "Netflix", "previous_status": "detected"},
	}}})

	detail := a.renderDetail(60)
	if !strings.Contains(detail, "cancel_request previous_status=detected") {
		t.Fatalf("detail missing history:\n%s", detail)
	}
	if !strings.Contains(detail, "netflix.com") {
		t.Fatalf("detail missing guidance:\n%s", detail)
	}
}

func TestRowAtYMatchesListLayout(t *testing.T) {
	a, _ := newTestApp(t)

	if got := a.rowAtY(9); got != 0 {
		t.Fatalf("rowAtY(9) = %d, want 0", got)
	}
	if got := a.rowAtY(10); got != 1 {
		t.Fatalf("rowAtY(10) = %d, want 1", got)
	}
	if got := a.rowAtY(11); got != -1 {
		t.Fatalf("rowAtY past rows = %d, want -1", got)
	}
	if got := a.rowAtY(3); got != -1 {
		t.Fatalf("rowAtY in header = %d, want -1", got)
	}
}

func TestMainViewFitsTerminal(t *testing.T) {
	a, _ := newTestApp(t)
	out := a.View()

	if lines := strings.Count(out, "\n") + 1; lines != 30 {
		t.Fatalf("view has %d lines, want 30", lines)
	}
	for _, want := range []string{"Netflix", "Spotify", "Subscriptions (2)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q", want)
		}
	}
}

func TestLoadErrorIsReported(t *testing.T) {
	a := NewApp(Deps{UserID: "u1", Store: &fakeStore{err: errors.New("disk gone")}, Lifecycle: &fakeLifecycle{}})
	a = update(t, a, loadSubsCmd(a.deps)())
	if !a.loaded || !a.failed || !strings.Contains(a.notice, "disk gone") {
		t.Fatalf("loaded=%v failed=%v notice=%q", a.loaded, a.failed, a.notice)
	}
}
