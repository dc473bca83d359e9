// Package guard decides which screen a navigation lands on, based on the
// session state.
package guard

import (
	"context"
	"log/slog"
	"strings"

	"survey-admin/internal/session"
)

const (
	LoginPath     = session.LoginPath
	DashboardPath = "/dashboard"
)

type Action int

const (
	// Wait means the session has not been rehydrated yet; render the boot
	// screen and decide again later.
	Wait Action = iota
	Admit
	Redirect
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Admit:
		return "admit"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

type Decision struct {
	Action Action
	// To is set for Redirect.
	To string
	// Route is the matched route pattern, empty for unknown paths.
	Route string
}

type Route struct {
	Pattern string
	Public  bool
	// RedirectTo makes the route an alias.
	RedirectTo string
}

// Routes is the dashboard's route table.
var Routes = []Route{
	{Pattern: "/login", Public: true},
	{Pattern: "/survey/:id", Public: true},
	{Pattern: "/thank-you", Public: true},

	{Pattern: "/", RedirectTo: DashboardPath},
	{Pattern: "/dashboard"},
	{Pattern: "/workspaces"},
	{Pattern: "/workspaces/:id"},
	{Pattern: "/reports"},
	{Pattern: "/reports/:id"},
	{Pattern: "/reports/detail/:id"},
	{Pattern: "/trash"},
	{Pattern: "/settings"},
}

// Match finds the route for path. Query strings are ignored.
func Match(path string) (Route, bool) {
	p := cleanPath(path)
	for _, r := range Routes {
		if matchPattern(r.Pattern, p) {
			return r, true
		}
	}
	return Route{}, false
}

func cleanPath(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

func matchPattern(pattern, path string) bool {
	if pattern == path {
		return true
	}
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}

// Session is what the guard needs from the session store.
type Session interface {
	State() session.State
	SetRedirectAfterLogin(ctx context.Context, path string) error
	TakeRedirectAfterLogin(ctx context.Context) (string, bool)
}

type Guard struct {
	s   Session
	log *slog.Logger
}

func New(s Session, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Guard{s: s, log: log}
}

// Decide routes a navigation to path. No decision is made until the session
// is initialized.
func (g *Guard) Decide(ctx context.Context, path string) Decision {
	st := g.s.State()
	if !st.Initialized {
		return Decision{Action: Wait}
	}
	p := cleanPath(path)
	r, ok := Match(p)
	if !ok {
		if st.Authenticated {
			return Decision{Action: Redirect, To: DashboardPath}
		}
		return Decision{Action: Redirect, To: LoginPath}
	}
	if r.RedirectTo != "" {
		d := g.Decide(ctx, r.RedirectTo)
		if d.Action == Admit {
			return Decision{Action: Redirect, To: r.RedirectTo, Route: r.Pattern}
		}
		return d
	}
	if r.Public {
		if r.Pattern == LoginPath && st.Authenticated {
			to := DashboardPath
			if next, ok := g.s.TakeRedirectAfterLogin(ctx); ok {
				to = next
			}
			return Decision{Action: Redirect, To: to, Route: r.Pattern}
		}
		return Decision{Action: Admit, Route: r.Pattern}
	}
	if !st.Authenticated {
		// The redirect still happens; only the resume target is lost.
		if err := g.s.SetRedirectAfterLogin(ctx, path); err != nil {
			g.log.Warn("remember redirect", "path", path, "err", err)
		}
		return Decision{Action: Redirect, To: LoginPath, Route: r.Pattern}
	}
	return Decision{Action: Admit, Route: r.Pattern}
}
