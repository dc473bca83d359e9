package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"survey-admin/internal/alert"
	"survey-admin/internal/api"
	"survey-admin/internal/guard"
	"survey-admin/internal/model"
	"survey-admin/internal/session"
	"survey-admin/internal/store"
	"survey-admin/internal/trash"
)

const snackbarTTL = 4 * time.Second

// Auth is the part of the API client the TUI signs in and out with.
type Auth interface {
	SignIn(ctx context.Context, creds api.Credentials) (api.TokenResponse, model.User, error)
	Logout(ctx context.Context) error
}

type Options struct {
	Session    *session.Session
	Guard      *guard.Guard
	Reconciler *trash.Reconciler
	Broker     *alert.Broker
	Auth       Auth
	Navigator  *Navigator
	Store      store.Store
	Logger     *slog.Logger

	// StartPath is the first location; defaults to the dashboard.
	StartPath string
}

type menuAction int

const (
	menuRestore menuAction = iota
	menuPurge
	menuCancel
)

var menuLabels = []string{"Restore", "Delete permanently", "Cancel"}

type appModel struct {
	ctx  context.Context
	opts Options
	log  *slog.Logger

	width  int
	height int

	screen  screen
	path    string
	pending string
	sess    session.State

	login loginForm

	tab        trash.Tab
	lists      map[trash.Tab]*list.Model
	snap       trash.Snapshot
	sel        trash.Selection
	menuIdx    int
	showDetail bool
	help       bool
	selectedID string

	alertReq   alert.Request
	alertFocus confirmModalFocus

	note     *trash.Notification
	flashSeq int

	spinner spinner.Model

	sessCh  <-chan session.State
	alertCh <-chan alert.Request
	unsub   []func()
}

func newAppModel(ctx context.Context, opts Options) appModel {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Navigator == nil {
		opts.Navigator = NewNavigator()
	}
	if opts.Broker == nil {
		opts.Broker = opts.Reconciler.Broker()
	}
	start := opts.StartPath
	if start == "" {
		start = guard.DashboardPath
	}

	m := appModel{
		ctx:     ctx,
		opts:    opts,
		log:     log,
		screen:  screenBoot,
		pending: start,
		login:   newLoginForm(),
		tab:     trash.TabTrash,
		lists:   map[trash.Tab]*list.Model{},
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, t := range trash.Tabs {
		l := newList(string(t), nil)
		m.lists[t] = &l
	}
	if st, err := opts.Store.LoadTUIState(); err == nil && st != nil {
		if tab, err := trash.ParseTab(st.Tab); err == nil {
			m.tab = tab
		}
		m.selectedID = st.SelectedID
	}

	sessCh, unsubSess := opts.Session.Subscribe()
	alertCh, unsubAlert := opts.Broker.Subscribe()
	m.sessCh, m.alertCh = sessCh, alertCh
	m.unsub = []func(){unsubSess, unsubAlert}
	return m
}

func (m appModel) Init() tea.Cmd {
	ctx, sess := m.ctx, m.opts.Session
	rec := m.opts.Reconciler
	return tea.Batch(
		func() tea.Msg { return bootDoneMsg{st: sess.Init(ctx)} },
		waitSession(m.sessCh),
		waitAlert(m.alertCh),
		waitNavigate(m.opts.Navigator.ch),
		waitChanges(rec.Changes()),
		waitNote(rec.Notifications()),
		waitReconciled(rec.Reconciled()),
		m.spinner.Tick,
	)
}

// teardown releases subscriptions once the program has exited.
func (m appModel) teardown() {
	for _, f := range m.unsub {
		f()
	}
}

func (m appModel) loadCmd() tea.Cmd {
	ctx, rec := m.ctx, m.opts.Reconciler
	return func() tea.Msg {
		res, err := rec.Load(ctx)
		return loadDoneMsg{res: res, err: err}
	}
}

func (m appModel) currentList() *list.Model {
	return m.lists[m.tab]
}

// selectedTarget is the row under the cursor on the current tab.
func (m appModel) selectedTarget() (model.Target, bool) {
	it, ok := m.currentList().SelectedItem().(targetItem)
	if !ok {
		return model.Target{}, false
	}
	return it.target(), true
}

// refreshLists rebuilds every tab from the latest snapshot, keeping the
// cursor on the same row id when it still exists.
func (m *appModel) refreshLists() {
	m.snap = m.opts.Reconciler.Snapshot()
	for _, t := range trash.Tabs {
		l := m.lists[t]
		keep := ""
		if it, ok := l.SelectedItem().(targetItem); ok {
			keep = it.target().ID()
		} else if t == m.tab {
			keep = m.selectedID
		}
		items := itemsFor(t, m.snap)
		l.SetItems(items)
		for i, it := range items {
			if ti, ok := it.(targetItem); ok && keep != "" && ti.target().ID() == keep {
				l.Select(i)
				break
			}
		}
	}
}

func (m *appModel) resizeLists() {
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	w := m.width - 4
	if m.showDetail {
		w = w / 2
	}
	for _, l := range m.lists {
		l.SetSize(w, h)
	}
}

func (m *appModel) saveTUIState() {
	st := &store.TUIState{Tab: string(m.tab)}
	if t, ok := m.selectedTarget(); ok {
		st.SelectedID = t.ID()
	}
	if err := m.opts.Store.SaveTUIState(st); err != nil {
		m.log.Warn("save tui state", "err", err)
	}
}

func (m *appModel) flash(n trash.Notification) tea.Cmd {
	m.note = &n
	m.flashSeq++
	seq := m.flashSeq
	return tea.Tick(snackbarTTL, func(time.Time) tea.Msg { return flashDoneMsg{seq: seq} })
}
