package tui

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"survey-admin/internal/api"
)

type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	err      string
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "email"
	email.Prompt = "Email:    "
	email.CharLimit = 254
	email.Focus()

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.Prompt = "Password: "
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	return loginForm{email: email, password: pw}
}

func (f *loginForm) setFocus(i int) {
	f.focus = i % 2
	if f.focus == 0 {
		f.email.Focus()
		f.password.Blur()
		return
	}
	f.email.Blur()
	f.password.Focus()
}

func (f loginForm) credentials() api.Credentials {
	return api.Credentials{
		Email:    strings.TrimSpace(f.email.Value()),
		Password: f.password.Value(),
	}
}

func (m appModel) updateLogin(msg tea.KeyMsg) (appModel, tea.Cmd) {
	if m.login.busy {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "down", "shift+tab", "up":
		m.login.setFocus(m.login.focus + 1)
		return m, nil
	case "enter":
		if m.login.focus == 0 {
			m.login.setFocus(1)
			return m, nil
		}
		creds := m.login.credentials()
		if creds.Email == "" || creds.Password == "" {
			m.login.err = "Enter email and password."
			return m, nil
		}
		m.login.busy = true
		m.login.err = ""
		return m, m.signIn(creds)
	}

	var cmd tea.Cmd
	if m.login.focus == 0 {
		m.login.email, cmd = m.login.email.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

func (m appModel) signIn(creds api.Credentials) tea.Cmd {
	ctx, auth, sess, log := m.ctx, m.opts.Auth, m.opts.Session, m.log
	return func() tea.Msg {
		tr, user, err := auth.SignIn(ctx, creds)
		if err != nil {
			log.Info("sign in failed", "email", creds.Email, "err", err)
			return loginDoneMsg{err: err}
		}
		return loginDoneMsg{err: sess.Login(ctx, tr.AccessToken, user)}
	}
}

func (m appModel) viewLogin() string {
	var b strings.Builder
	b.WriteString(styleTitle().Render("Sign in"))
	b.WriteString("\n\n")
	b.WriteString(m.login.email.View())
	b.WriteString("\n")
	b.WriteString(m.login.password.View())
	b.WriteString("\n\n")
	switch {
	case m.login.busy:
		b.WriteString(m.spinner.View() + " signing in")
	case m.login.err != "":
		b.WriteString(styleError().Render(m.login.err))
	default:
		b.WriteString(styleMuted().Render("tab: next field   enter: sign in   ctrl+c: quit"))
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// signInError hides the backend detail for rejected credentials.
func signInError(err error) string {
	if api.StatusOf(err) == http.StatusUnauthorized {
		return "Invalid email or password."
	}
	return "Login failed: " + err.Error()
}
