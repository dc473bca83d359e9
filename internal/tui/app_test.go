package tui

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"survey-admin/internal/alert"
	"survey-admin/internal/api"
	"survey-admin/internal/guard"
	"survey-admin/internal/mockapi"
	"survey-admin/internal/model"
	"survey-admin/internal/session"
	"survey-admin/internal/store"
	"survey-admin/internal/trash"
)

type harness struct {
	ctx  context.Context
	srv  *mockapi.Server
	sess *session.Session
	rec  *trash.Reconciler
	nav  *Navigator
	dir  string
	m    appModel
}

func newHarness(t *testing.T, start string) *harness {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	srv, err := mockapi.New(mockapi.Options{})
	if err != nil {
		t.Fatalf("mockapi.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	dir := t.TempDir()
	broker := alert.New(nil)
	nav := NewNavigator()
	sess := session.New(store.NewMemoryKV(), broker, nav, nil)
	client := api.New(api.Options{
		BaseURL: ts.URL,
		Tokens:  sess,
		OnUnauthorized: func(ctx context.Context) {
			sess.ExpireSession(ctx, nav.Current())
		},
	})
	rec := trash.New(trash.Options{Remote: client, Broker: broker, RefetchDelay: time.Millisecond})
	t.Cleanup(func() {
		rec.Close()
		rec.Wait()
	})

	m := newAppModel(ctx, Options{
		Session:    sess,
		Guard:      guard.New(sess, nil),
		Reconciler: rec,
		Broker:     broker,
		Auth:       client,
		Navigator:  nav,
		Store:      store.Store{Dir: dir},
		StartPath:  start,
	})
	t.Cleanup(m.teardown)
	h := &harness{ctx: ctx, srv: srv, sess: sess, rec: rec, nav: nav, dir: dir, m: m}
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// send feeds msg to the model and returns the produced command.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	mm, cmd := h.m.Update(msg)
	h.m = mm.(appModel)
	return cmd
}

// run executes cmd synchronously and feeds its message back.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		if _, isBatch := msg.(tea.BatchMsg); isBatch {
			return
		}
		h.send(msg)
	}
}

func (h *harness) key(s string) tea.Cmd {
	switch s {
	case "enter":
		return h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return h.send(tea.KeyMsg{Type: tea.KeyEsc})
	case "tab":
		return h.send(tea.KeyMsg{Type: tea.KeyTab})
	}
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func (h *harness) boot() {
	h.send(bootDoneMsg{st: h.sess.Init(h.ctx)})
}

// load runs the trash load the trash screen asks for.
func (h *harness) load() {
	res, err := h.rec.Load(h.ctx)
	h.send(loadDoneMsg{res: res, err: err})
}

func (h *harness) selectID(t *testing.T, id string) {
	t.Helper()
	l := h.m.currentList()
	for i, it := range l.Items() {
		if ti, ok := it.(targetItem); ok && ti.target().ID() == id {
			l.Select(i)
			return
		}
	}
	t.Fatalf("row %s not on tab %s", id, h.m.tab)
}

func (h *harness) ids(tab trash.Tab) []string {
	var out []string
	for _, it := range h.m.lists[tab].Items() {
		out = append(out, it.(targetItem).target().ID())
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func TestBoot_WaitsThenSendsAnonymousToLogin(t *testing.T) {
	h := newHarness(t, "/trash")

	if h.m.screen != screenBoot || !strings.Contains(h.m.View(), "Loading session") {
		t.Fatalf("expected boot screen first")
	}
	h.boot()
	if h.m.screen != screenLogin {
		t.Fatalf("expected login screen, got %v", h.m.screen)
	}
	if p, ok := h.sess.TakeRedirectAfterLogin(h.ctx); !ok || p != "/trash" {
		t.Fatalf("expected /trash remembered, got %q %v", p, ok)
	}
}

func TestLogin_ResumesAtRequestedScreen(t *testing.T) {
	h := newHarness(t, "/trash?tab=archive")
	h.boot()

	h.typeText(mockapi.DefaultEmail)
	h.key("tab")
	h.typeText(mockapi.DefaultPassword)
	h.run(h.key("enter"))

	if h.m.screen != screenTrash || h.m.tab != trash.TabArchive {
		t.Fatalf("expected archive tab after login, got screen=%v tab=%s", h.m.screen, h.m.tab)
	}
	if !h.sess.State().Authenticated {
		t.Fatalf("expected authenticated session")
	}
	h.load()
	if got := h.ids(trash.TabArchive); len(got) != 1 || got[0] != "s3" {
		t.Fatalf("archive rows = %v", got)
	}
	if got := h.ids(trash.TabTrash); !contains(got, "s1") || !contains(got, "s4") || contains(got, "s3") {
		t.Fatalf("trash rows = %v", got)
	}
}

func TestLogin_BadPasswordStaysOnForm(t *testing.T) {
	h := newHarness(t, "/dashboard")
	h.boot()

	h.typeText(mockapi.DefaultEmail)
	h.key("tab")
	h.typeText("nope")
	h.run(h.key("enter"))

	if h.m.screen != screenLogin || h.m.login.err != "Invalid email or password." {
		t.Fatalf("expected inline error, got screen=%v err=%q", h.m.screen, h.m.login.err)
	}
}

func signedIn(t *testing.T, start string) *harness {
	t.Helper()
	h := newHarness(t, start)
	h.boot()
	h.typeText(mockapi.DefaultEmail)
	h.key("tab")
	h.typeText(mockapi.DefaultPassword)
	h.run(h.key("enter"))
	if !h.sess.State().Authenticated {
		t.Fatalf("sign-in failed: %q", h.m.login.err)
	}
	return h
}

func TestTrash_RestoreThroughConfirmation(t *testing.T) {
	h := signedIn(t, "/trash")
	h.load()
	h.selectID(t, "s1")

	h.key("r")
	if !h.m.alertReq.Open || h.m.alertReq.Title != "Restore" {
		t.Fatalf("expected restore confirmation, got %#v", h.m.alertReq)
	}
	if tgt, ok := h.m.sel.Dialog(); !ok || tgt.ID() != "s1" {
		t.Fatalf("dialog must own s1, got %#v %v", tgt, ok)
	}
	if !strings.Contains(h.m.View(), "Sleep habits") {
		t.Fatalf("confirmation should name the survey")
	}

	h.key("enter")
	if h.m.alertReq.Open {
		t.Fatalf("confirmation should close")
	}
	if _, ok := h.m.sel.Dialog(); ok {
		t.Fatalf("dialog target should clear after confirmation")
	}

	select {
	case n := <-h.rec.Notifications():
		if n.Severity != trash.SeveritySuccess {
			t.Fatalf("unexpected notification %#v", n)
		}
		h.send(noteMsg{n: n})
	case <-time.After(5 * time.Second):
		t.Fatalf("no notification")
	}
	h.send(changesMsg{})
	if contains(h.ids(trash.TabTrash), "s1") {
		t.Fatalf("s1 should leave the trash at once")
	}
	if sv, _ := h.srv.Survey("s1"); sv.Status != model.SurveyStatusActive {
		t.Fatalf("backend status = %s", sv.Status)
	}
	if !strings.Contains(h.m.View(), "restored") {
		t.Fatalf("snackbar should show the success message")
	}
}

func TestTrash_DismissKeepsRow(t *testing.T) {
	h := signedIn(t, "/trash")
	h.load()
	h.selectID(t, "s4")

	h.key("x")
	if !h.m.alertReq.Open || h.m.alertReq.Title != "Delete permanently" {
		t.Fatalf("expected purge confirmation, got %#v", h.m.alertReq)
	}
	h.key("esc")
	if h.m.alertReq.Open {
		t.Fatalf("confirmation should close on esc")
	}
	if !contains(h.ids(trash.TabTrash), "s4") {
		t.Fatalf("dismissed purge must keep the row")
	}
	if _, ok := h.srv.Survey("s4"); !ok {
		t.Fatalf("backend must still hold s4")
	}
}

func TestTrash_MenuCloseKeepsDialogTarget(t *testing.T) {
	h := signedIn(t, "/trash")
	h.load()
	h.selectID(t, "s1")

	h.key("enter")
	if _, ok := h.m.sel.Menu(); !ok {
		t.Fatalf("expected context menu")
	}
	h.key("esc")
	if _, ok := h.m.sel.Menu(); ok {
		t.Fatalf("esc should close the menu")
	}

	h.key("enter")
	h.key("j") // Delete permanently
	h.key("enter")
	if _, ok := h.m.sel.Menu(); ok {
		t.Fatalf("choosing an action closes the menu")
	}
	if tgt, ok := h.m.sel.Dialog(); !ok || tgt.ID() != "s1" {
		t.Fatalf("dialog must keep its target after the menu closed")
	}
	h.key("esc")
}

func TestTrash_TabSwitchPersists(t *testing.T) {
	h := signedIn(t, "/trash")
	h.load()

	h.key("tab")
	if h.m.tab != trash.TabArchive {
		t.Fatalf("tab = %s", h.m.tab)
	}
	h.key("3")
	if h.m.tab != trash.TabWorkspaces {
		t.Fatalf("tab = %s", h.m.tab)
	}
	if got := h.ids(trash.TabWorkspaces); len(got) != 1 || got[0] != "w3" {
		t.Fatalf("workspace rows = %v", got)
	}
	st, err := store.Store{Dir: h.dir}.LoadTUIState()
	if err != nil || st.Tab != string(trash.TabWorkspaces) {
		t.Fatalf("persisted tab = %#v, %v", st, err)
	}
}

func TestLogout_AlertThenLogin(t *testing.T) {
	h := signedIn(t, "/dashboard")
	if h.m.screen != screenHome {
		t.Fatalf("expected home, got %v", h.m.screen)
	}

	h.run(h.key("L"))
	req := h.m.opts.Broker.Current()
	if !req.Open || req.Title != "Logged out" {
		t.Fatalf("expected logged-out alert, got %#v", req)
	}
	h.send(sessionMsg{st: h.sess.State()})
	h.send(alertMsg{req: req})
	if h.m.screen != screenHome {
		t.Fatalf("screen must wait for acknowledgement, got %v", h.m.screen)
	}

	h.key("enter")
	select {
	case p := <-h.nav.ch:
		h.send(navigateMsg{path: p})
	case <-time.After(time.Second):
		t.Fatalf("expected navigation after acknowledgement")
	}
	if h.m.screen != screenLogin {
		t.Fatalf("expected login screen, got %v", h.m.screen)
	}
	if _, ok := h.sess.TakeRedirectAfterLogin(h.ctx); ok {
		t.Fatalf("logout must not leave a redirect behind")
	}
}

func TestExpiredSession_RemembersLocation(t *testing.T) {
	h := signedIn(t, "/trash")
	if h.nav.Current() != "/trash" {
		t.Fatalf("current = %q", h.nav.Current())
	}

	h.sess.ExpireSession(h.ctx, h.nav.Current())
	h.send(sessionMsg{st: h.sess.State()})
	h.send(alertMsg{req: h.m.opts.Broker.Current()})
	if !h.m.alertReq.Open || h.m.alertReq.Title != "Session expired" {
		t.Fatalf("expected expiry alert, got %#v", h.m.alertReq)
	}

	h.key("y")
	h.send(navigateMsg{path: <-h.nav.ch})
	if h.m.screen != screenLogin {
		t.Fatalf("expected login, got %v", h.m.screen)
	}
	h.typeText(mockapi.DefaultEmail)
	h.key("tab")
	h.typeText(mockapi.DefaultPassword)
	h.run(h.key("enter"))
	if h.m.screen != screenTrash {
		t.Fatalf("expected to resume on trash, got %v", h.m.screen)
	}
}

func TestNextTab_Wraps(t *testing.T) {
	t.Parallel()

	if got := nextTab(trash.TabWorkspaces, 1); got != trash.TabTrash {
		t.Fatalf("got %s", got)
	}
	if got := nextTab(trash.TabTrash, -1); got != trash.TabWorkspaces {
		t.Fatalf("got %s", got)
	}
}

func TestHelp_TogglesOverHome(t *testing.T) {
	h := newHarness(t, "/dashboard")
	h.boot()
	h.typeText(mockapi.DefaultEmail)
	h.key("tab")
	h.typeText(mockapi.DefaultPassword)
	h.run(h.key("enter"))
	if h.m.screen != screenHome {
		t.Fatalf("expected home screen, got %v", h.m.screen)
	}

	h.key("?")
	if !h.m.help || !strings.Contains(h.m.View(), "filter") {
		t.Fatalf("expected the key help to render")
	}
	// Keys are swallowed while help is open.
	h.key("t")
	if h.m.screen != screenHome {
		t.Fatalf("help must not pass keys through, screen=%v", h.m.screen)
	}
	h.key("esc")
	if h.m.help {
		t.Fatalf("esc should close help")
	}
}
