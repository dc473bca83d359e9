// Package webtui serves the dashboard TUI to a browser terminal. Each
// websocket connection runs its own dashboard process on a pty.
package webtui

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
)

//go:embed templates/*.html static/*.css static/*.js
var assetsFS embed.FS

type ServerConfig struct {
	Addr string

	// Args are passed to every dashboard process (e.g. --dir, --api).
	Args []string

	// StartPath is the route the dashboard opens at.
	StartPath string

	// Command builds the process for one session. Defaults to re-running
	// the current executable with Args.
	Command func(args []string) (*exec.Cmd, error)

	Logger *slog.Logger
}

type Server struct {
	cfg  ServerConfig
	tmpl *template.Template
	log  *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("webtui: missing addr")
	}
	tmpl, err := template.ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if cfg.Command == nil {
		cfg.Command = selfCommand
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg, tmpl: tmpl, log: log}, nil
}

func selfCommand(args []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return exec.Command(exe, args...), nil
}

func (s *Server) Addr() string {
	return strings.TrimSpace(s.cfg.Addr)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/terminal", http.StatusFound)
	})
	mux.HandleFunc("GET /terminal", s.handleTerminal)
	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("GET /static/app.css", s.handleStatic("static/app.css", "text/css; charset=utf-8"))
	mux.HandleFunc("GET /static/app.js", s.handleStatic("static/app.js", "text/javascript; charset=utf-8"))

	return mux
}

func (s *Server) handleStatic(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := assetsFS.ReadFile(path)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(b)
	}
}

type terminalVM struct {
	StartPath string
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	vm := terminalVM{StartPath: s.startPath(r)}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "terminal.html", vm); err != nil {
		s.log.Error("render terminal page", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// startPath lets ?path=/trash?tab=archive pick the route per page load.
func (s *Server) startPath(r *http.Request) string {
	if p := strings.TrimSpace(r.URL.Query().Get("path")); strings.HasPrefix(p, "/") {
		return p
	}
	if p := strings.TrimSpace(s.cfg.StartPath); p != "" {
		return p
	}
	return "/dashboard"
}

// sessionArgs are the arguments of one dashboard process.
func (s *Server) sessionArgs(r *http.Request) []string {
	args := append([]string(nil), s.cfg.Args...)
	return append(args, "--path", s.startPath(r))
}
