package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"survey-admin/internal/model"
	"survey-admin/internal/trash"
)

type surveyItem struct {
	row  model.TrashRow
	busy bool
}

func (i surveyItem) FilterValue() string { return i.row.Title + " " + i.row.WorkspaceName }
func (i surveyItem) Title() string {
	if i.busy {
		return i.row.Title + " " + glyphBusy
	}
	return i.row.Title
}
func (i surveyItem) Description() string {
	return fmt.Sprintf("%s · %d responses · %s", i.row.WorkspaceName, i.row.ResponsesCount, shortDate(i.row.ArchivedAt))
}

func (i surveyItem) target() model.Target {
	row := i.row
	return model.Target{Kind: model.TargetSurvey, Survey: &row}
}

type workspaceItem struct {
	ws   model.TrashedWorkspace
	busy bool
}

func (i workspaceItem) FilterValue() string { return i.ws.Name }
func (i workspaceItem) Title() string {
	if i.busy {
		return i.ws.Name + " " + glyphBusy
	}
	return i.ws.Name
}
func (i workspaceItem) Description() string {
	return fmt.Sprintf("%d surveys · %d responses · deleted %s", i.ws.SurveysCount, i.ws.ResponsesCount, shortDate(i.ws.DeletedAt))
}

func (i workspaceItem) target() model.Target {
	ws := i.ws
	return model.Target{Kind: model.TargetWorkspace, Workspace: &ws}
}

type targetItem interface {
	list.Item
	target() model.Target
}

const glyphBusy = "…"

// shortDate keeps the date part of an ISO timestamp.
func shortDate(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	if s == "" {
		return "-"
	}
	return s
}

// itemsFor builds list items for tab from a snapshot.
func itemsFor(tab trash.Tab, snap trash.Snapshot) []list.Item {
	if tab == trash.TabWorkspaces {
		out := make([]list.Item, 0, len(snap.Workspaces))
		for _, ws := range snap.Workspaces {
			out = append(out, workspaceItem{ws: ws, busy: snap.IsBusy(model.TargetWorkspace, ws.ID)})
		}
		return out
	}
	rows := snap.Rows(tab)
	out := make([]list.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, surveyItem{row: r, busy: snap.IsBusy(model.TargetSurvey, r.ID)})
	}
	return out
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	// The app renders its own tabs and footer, so keep list chrome minimal.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("item", "items")
	// ESC closes menus here, it never quits.
	l.KeyMap.Quit.SetKeys("q")
	cursorUpKeys := append([]string{}, l.KeyMap.CursorUp.Keys()...)
	l.KeyMap.CursorUp.SetKeys(append(cursorUpKeys, "ctrl+p")...)
	cursorDownKeys := append([]string{}, l.KeyMap.CursorDown.Keys()...)
	l.KeyMap.CursorDown.SetKeys(append(cursorDownKeys, "ctrl+n")...)
	return l
}
