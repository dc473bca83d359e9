package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"survey-admin/internal/docs"
	"survey-admin/internal/model"
	"survey-admin/internal/trash"
)

var tabLabels = map[trash.Tab]string{
	trash.TabTrash:      "Trash",
	trash.TabArchive:    "Archive",
	trash.TabWorkspaces: "Workspaces",
}

func (m appModel) View() string {
	var body string
	switch m.screen {
	case screenBoot:
		body = lipgloss.NewStyle().Padding(1, 2).Render(m.spinner.View() + " Loading session")
	case screenLogin:
		body = m.viewLogin()
	case screenTrash:
		body = m.viewTrash()
	default:
		body = m.viewHome()
	}
	if m.help {
		body = m.viewHelp()
	}

	var overlay string
	if m.alertReq.Open {
		overlay = renderAlert(m.width, m.alertReq, m.alertFocus)
	} else if t, open := m.sel.Menu(); open && m.screen == screenTrash {
		overlay = m.viewMenu(t)
	}
	if overlay != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", overlay)
	}
	if bar := m.viewSnackbar(); bar != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", bar)
	}
	return body
}

func (m appModel) viewHome() string {
	name := ""
	if m.sess.User != nil {
		name = m.sess.User.DisplayName()
	}
	lines := []string{
		styleTitle().Render("Survey admin"),
		"",
		"Signed in as " + name,
		styleMuted().Render("at " + m.path),
		"",
		styleMuted().Render("t: trash   ?: help   L: log out   q: quit"),
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func (m appModel) viewTabs() string {
	active := lipgloss.NewStyle().Bold(true).Padding(0, 1).
		Foreground(colorAccentFg).Background(colorAccent)
	inactive := lipgloss.NewStyle().Padding(0, 1).Foreground(colorMuted)
	parts := make([]string, 0, len(trash.Tabs))
	for i, t := range trash.Tabs {
		label := fmt.Sprintf("%d %s (%d)", i+1, tabLabels[t], m.countFor(t))
		if t == m.tab {
			parts = append(parts, active.Render(label))
			continue
		}
		parts = append(parts, inactive.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m appModel) countFor(t trash.Tab) int {
	if t == trash.TabWorkspaces {
		return len(m.snap.Workspaces)
	}
	return len(m.snap.Rows(t))
}

func (m appModel) branchErr(t trash.Tab) error {
	switch t {
	case trash.TabTrash:
		return m.snap.TrashErr
	case trash.TabArchive:
		return m.snap.ArchiveErr
	default:
		return m.snap.WorkspacesErr
	}
}

func (m appModel) viewTrash() string {
	header := styleTitle().Render("Trash") + "  " + m.viewTabs()
	if m.snap.Loading {
		header += "  " + m.spinner.View()
	}

	var content string
	l := m.currentList()
	switch {
	case !m.snap.Loaded && m.snap.Loading:
		content = styleMuted().Render("Loading…")
	case len(l.Items()) == 0 && m.branchErr(m.tab) != nil:
		content = styleError().Render("Could not load this tab. Press g to retry.")
	case len(l.Items()) == 0:
		content = styleMuted().Render(emptyText(m.tab))
	default:
		content = l.View()
	}
	if m.showDetail {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, "  ", m.viewDetail())
	}

	help := "tab: switch   enter: actions   r: restore   x: delete   d: details   g: reload   /: filter   esc: back   ?: help"
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join([]string{
		header,
		"",
		content,
		"",
		styleMuted().Render(xansi.Truncate(help, max(m.width-4, 20), "…")),
	}, "\n"))
}

func emptyText(t trash.Tab) string {
	switch t {
	case trash.TabArchive:
		return "No archived surveys."
	case trash.TabWorkspaces:
		return "No deleted workspaces."
	default:
		return "Trash is empty."
	}
}

func (m appModel) viewDetail() string {
	w := m.width/2 - 6
	if w < 20 {
		w = 20
	}
	t, ok := m.selectedTarget()
	if !ok {
		return ""
	}
	var lines []string
	switch t.Kind {
	case model.TargetSurvey:
		r := t.Survey
		lines = []string{
			styleTitle().Render(xansi.Truncate(r.Title, w, "…")),
			styleMuted().Render(fmt.Sprintf("%s · scale 1-%d · %d responses", r.WorkspaceName, r.ScaleMax, r.ResponsesCount)),
			styleMuted().Render("since " + shortDate(r.ArchivedAt)),
		}
		if md := renderMarkdown(r.Description, w); md != "" {
			lines = append(lines, "", md)
		}
	case model.TargetWorkspace:
		ws := t.Workspace
		lines = []string{
			styleTitle().Render(xansi.Truncate(ws.Name, w, "…")),
			styleMuted().Render(fmt.Sprintf("%d surveys · %d responses", ws.SurveysCount, ws.ResponsesCount)),
		}
		if d, ok := model.PurgeDeadline(ws.DeletedAt); ok {
			lines = append(lines, styleMuted().Render("deleted for good after "+d.Format("2006-01-02")))
		}
		if md := renderMarkdown(ws.Description, w); md != "" {
			lines = append(lines, "", md)
		}
	}
	return lipgloss.NewStyle().Width(w).Render(strings.Join(lines, "\n"))
}

func (m appModel) viewMenu(t model.Target) string {
	rows := make([]string, 0, len(menuLabels))
	sel := lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	for i, label := range menuLabels {
		if i == m.menuIdx {
			rows = append(rows, sel.Render("> "+label))
			continue
		}
		rows = append(rows, "  "+label)
	}
	return renderModalBox(m.width, t.Label(), strings.Join(rows, "\n"))
}

func (m appModel) viewSnackbar() string {
	if m.note == nil {
		return ""
	}
	fg := colorSurfaceFg
	switch m.note.Severity {
	case trash.SeveritySuccess:
		fg = colorSuccess
	case trash.SeverityError:
		fg = colorError
	case trash.SeverityWarning:
		fg = colorWarning
	}
	w := max(m.width-4, 20)
	return lipgloss.NewStyle().
		Padding(0, 1).
		MarginLeft(2).
		Foreground(fg).
		Background(colorInputBg).
		Render(xansi.Truncate(m.note.Message, w, "…"))
}

func (m appModel) viewHelp() string {
	md, ok := docs.Get("keys")
	if !ok {
		return styleError().Render("help unavailable")
	}
	out := renderMarkdown(md, m.width)
	return out + "\n" + styleMuted().Render("  ?/esc: close help")
}
