package tui

import (
	"errors"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"survey-admin/internal/alert"
	"survey-admin/internal/guard"
	"survey-admin/internal/trash"
)

const maxRedirects = 4

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bootDoneMsg:
		m.sess = msg.st
		return m.navigate(m.pending)

	case sessionMsg:
		m.sess = msg.st
		var cmd tea.Cmd
		m, cmd = m.recheck()
		return m, tea.Batch(cmd, waitSession(m.sessCh))

	case alertMsg:
		if msg.req.Ticket != m.alertReq.Ticket {
			m.alertFocus = confirmFocusConfirm
		}
		m.alertReq = msg.req
		if !msg.req.Open {
			m.sel.CloseDialog()
		}
		var cmd tea.Cmd
		m, cmd = m.recheck()
		return m, tea.Batch(cmd, waitAlert(m.alertCh))

	case navigateMsg:
		var cmd tea.Cmd
		m, cmd = m.navigate(msg.path)
		return m, tea.Batch(cmd, waitNavigate(m.opts.Navigator.ch))

	case changesMsg:
		m.refreshLists()
		return m, waitChanges(m.opts.Reconciler.Changes())

	case noteMsg:
		return m, tea.Batch(m.flash(msg.n), waitNote(m.opts.Reconciler.Notifications()))

	case reconciledMsg:
		m.refreshLists()
		return m, waitReconciled(m.opts.Reconciler.Reconciled())

	case loadDoneMsg:
		// Branch failures arrive as notifications.
		if msg.err != nil {
			m.log.Debug("load skipped", "err", msg.err)
		}
		m.refreshLists()
		return m, nil

	case loginDoneMsg:
		m.login.busy = false
		if msg.err != nil {
			m.login.err = signInError(msg.err)
			return m, nil
		}
		m.login = newLoginForm()
		return m.navigate(guard.LoginPath)

	case logoutDoneMsg:
		if msg.err != nil {
			m.log.Warn("logout", "err", msg.err)
		}
		return m, nil

	case flashDoneMsg:
		if msg.seq == m.flashSeq {
			m.note = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

// navigate asks the guard where path lands and switches screens.
func (m appModel) navigate(path string) (appModel, tea.Cmd) {
	for i := 0; i < maxRedirects; i++ {
		d := m.opts.Guard.Decide(m.ctx, path)
		switch d.Action {
		case guard.Wait:
			m.screen = screenBoot
			m.pending = path
			return m, nil
		case guard.Redirect:
			m.log.Debug("redirect", "from", path, "to", d.To)
			path = d.To
			continue
		}
		return m.admit(path, d.Route)
	}
	m.log.Warn("redirect loop", "path", path)
	return m.admit(guard.LoginPath, guard.LoginPath)
}

func (m appModel) admit(path, route string) (appModel, tea.Cmd) {
	m.path = path
	m.pending = ""
	m.opts.Navigator.setCurrent(path)
	switch route {
	case guard.LoginPath:
		m.screen = screenLogin
		return m, nil
	case "/trash":
		m.screen = screenTrash
		if u, err := url.Parse(path); err == nil {
			if v := u.Query().Get("tab"); v != "" {
				if tab, err := trash.ParseTab(v); err == nil {
					m.tab = tab
				}
			}
		}
		m.resizeLists()
		return m, m.loadCmd()
	default:
		m.screen = screenHome
		return m, nil
	}
}

// recheck sends a signed-out user from a protected screen to the login
// screen, unless an alert is still waiting to be acknowledged.
func (m appModel) recheck() (appModel, tea.Cmd) {
	if m.sess.Authenticated || (m.screen != screenHome && m.screen != screenTrash) {
		return m, nil
	}
	if m.opts.Broker.Current().Open {
		return m, nil
	}
	return m.navigate(guard.LoginPath)
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.alertReq.Open {
		return m.updateAlert(msg)
	}
	if m.help {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "?", "esc", "q":
			m.help = false
		}
		return m, nil
	}
	switch m.screen {
	case screenBoot:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case screenLogin:
		return m.updateLogin(msg)
	case screenTrash:
		return m.updateTrash(msg)
	default:
		return m.updateHome(msg)
	}
}

func (m appModel) updateAlert(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "shift+tab", "left", "right", "h", "l":
		m.alertFocus = m.alertFocus.toggle()
		return m, nil
	case "y":
		return m.resolveAlert(alert.DecisionConfirm)
	case "esc", "n", "ctrl+g":
		return m.resolveAlert(alert.DecisionDismiss)
	case "enter":
		if m.alertFocus == confirmFocusConfirm {
			return m.resolveAlert(alert.DecisionConfirm)
		}
		return m.resolveAlert(alert.DecisionDismiss)
	}
	return m, nil
}

func (m appModel) resolveAlert(d alert.Decision) (tea.Model, tea.Cmd) {
	ok, err := m.opts.Broker.Resolve(m.alertReq.Ticket, d)
	m.alertReq = m.opts.Broker.Current()
	if !m.alertReq.Open {
		m.sel.CloseDialog()
	}
	if ok && err != nil {
		return m, m.flash(errorNote(err))
	}
	return m, nil
}

func (m appModel) updateHome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "t":
		return m.navigate("/trash")
	case "?":
		m.help = true
		return m, nil
	case "L":
		return m, m.logoutCmd()
	}
	return m, nil
}

func (m appModel) updateTrash(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	l := m.currentList()
	switch fs := l.FilterState(); {
	case fs == list.Filtering, fs == list.FilterApplied && msg.String() == "esc":
		nl, cmd := l.Update(msg)
		*l = nl
		return m, cmd
	}
	if _, open := m.sel.Menu(); open {
		return m.updateMenu(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.saveTUIState()
		return m, tea.Quit
	case "esc":
		m.saveTUIState()
		return m.navigate(guard.DashboardPath)
	case "tab", "right":
		m.tab = nextTab(m.tab, 1)
		m.saveTUIState()
		return m, nil
	case "shift+tab", "left":
		m.tab = nextTab(m.tab, -1)
		m.saveTUIState()
		return m, nil
	case "1", "2", "3":
		m.tab = trash.Tabs[int(msg.String()[0]-'1')]
		m.saveTUIState()
		return m, nil
	case "g", "ctrl+r":
		return m, m.loadCmd()
	case "d":
		m.showDetail = !m.showDetail
		m.resizeLists()
		return m, nil
	case "?":
		m.help = true
		return m, nil
	case "enter", "m":
		if t, ok := m.selectedTarget(); ok {
			m.sel.OpenMenu(t)
			m.menuIdx = 0
		}
		return m, nil
	case "r":
		if t, ok := m.selectedTarget(); ok {
			m.sel.OpenMenu(t)
			return m.runMenu(menuRestore)
		}
		return m, nil
	case "x", "delete":
		if t, ok := m.selectedTarget(); ok {
			m.sel.OpenMenu(t)
			return m.runMenu(menuPurge)
		}
		return m, nil
	case "L":
		return m, m.logoutCmd()
	}

	nl, cmd := l.Update(msg)
	*l = nl
	return m, cmd
}

func (m appModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+g", "q":
		m.sel.CloseMenu()
		return m, nil
	case "up", "k", "ctrl+p":
		if m.menuIdx > 0 {
			m.menuIdx--
		}
		return m, nil
	case "down", "j", "ctrl+n":
		if m.menuIdx < len(menuLabels)-1 {
			m.menuIdx++
		}
		return m, nil
	case "enter":
		return m.runMenu(menuAction(m.menuIdx))
	}
	return m, nil
}

// runMenu hands the menu target to a confirmation dialog for action.
func (m appModel) runMenu(action menuAction) (tea.Model, tea.Cmd) {
	if action == menuCancel {
		m.sel.CloseMenu()
		return m, nil
	}
	t, ok := m.sel.Promote()
	if !ok {
		return m, nil
	}
	rec := m.opts.Reconciler
	var err error
	switch action {
	case menuRestore:
		_, err = rec.RequestRestore(m.tab, t.ID())
	case menuPurge:
		_, err = rec.RequestPurge(m.tab, t.ID())
	}
	if err != nil {
		m.sel.CloseDialog()
		return m, m.flash(errorNote(err))
	}
	m.alertReq = m.opts.Broker.Current()
	m.alertFocus = confirmFocusConfirm
	return m, nil
}

func (m appModel) logoutCmd() tea.Cmd {
	ctx, auth, sess, log := m.ctx, m.opts.Auth, m.opts.Session, m.log
	return func() tea.Msg {
		// Remote logout is best effort.
		if err := auth.Logout(ctx); err != nil {
			log.Info("remote logout failed", "err", err)
		}
		return logoutDoneMsg{err: sess.Logout(ctx)}
	}
}

func nextTab(cur trash.Tab, delta int) trash.Tab {
	n := len(trash.Tabs)
	for i, t := range trash.Tabs {
		if t == cur {
			return trash.Tabs[((i+delta)%n+n)%n]
		}
	}
	return trash.TabTrash
}

func errorNote(err error) trash.Notification {
	msg := err.Error()
	var cbErr *alert.CallbackError
	if errors.As(err, &cbErr) {
		msg = cbErr.Err.Error()
	}
	if errors.Is(err, trash.ErrBusy) {
		msg = "That item is already being processed."
	}
	return trash.Notification{Severity: trash.SeverityError, Message: strings.TrimSpace(msg)}
}
