package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"survey-admin/internal/alert"
	"survey-admin/internal/session"
	"survey-admin/internal/trash"
)

type screen int

const (
	screenBoot screen = iota
	screenLogin
	screenHome
	screenTrash
)

type bootDoneMsg struct{ st session.State }

type sessionMsg struct{ st session.State }

type alertMsg struct{ req alert.Request }

type changesMsg struct{}

type noteMsg struct{ n trash.Notification }

type reconciledMsg struct{ res trash.LoadResult }

type loadDoneMsg struct {
	res trash.LoadResult
	err error
}

type navigateMsg struct{ path string }

type loginDoneMsg struct{ err error }

type logoutDoneMsg struct{ err error }

type flashDoneMsg struct{ seq int }

// Navigator is the hard-navigation hook handed to the session store. It
// also remembers the location the TUI currently shows.
type Navigator struct {
	ch chan string

	mu  sync.Mutex
	cur string
}

func NewNavigator() *Navigator {
	return &Navigator{ch: make(chan string, 8)}
}

// Navigate queues a navigation. It never blocks; when the queue is full the
// request is dropped.
func (n *Navigator) Navigate(path string) {
	select {
	case n.ch <- path:
	default:
	}
}

// Current is the path of the screen on display.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cur
}

func (n *Navigator) setCurrent(path string) {
	n.mu.Lock()
	n.cur = path
	n.mu.Unlock()
}

func waitNavigate(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return navigateMsg{path: p}
	}
}

func waitSession(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return sessionMsg{st: st}
	}
}

func waitAlert(ch <-chan alert.Request) tea.Cmd {
	return func() tea.Msg {
		req, ok := <-ch
		if !ok {
			return nil
		}
		return alertMsg{req: req}
	}
}

func waitChanges(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changesMsg{}
	}
}

func waitNote(ch <-chan trash.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noteMsg{n: n}
	}
}

func waitReconciled(ch <-chan trash.LoadResult) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return reconciledMsg{res: res}
	}
}
