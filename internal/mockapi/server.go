// Package mockapi serves the survey backend contract from memory. It backs
// `surveyadmin mock-api` for local development and the client tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"survey-admin/internal/model"
)

const (
	DefaultEmail    = "admin@example.com"
	DefaultPassword = "password"

	tokenTTL = time.Hour
)

type Options struct {
	// Secret signs access tokens. A random secret is used when empty.
	Secret string

	// BcryptCost defaults to bcrypt.MinCost to keep tests fast.
	BcryptCost int

	// RejectActiveFilter makes GET /workspaces/?is_active=... fail with 422.
	RejectActiveFilter bool

	// WrapArchive wraps the archive listing in {"data": ...}.
	WrapArchive bool

	// Empty starts without the demo dataset.
	Empty bool

	Logger *slog.Logger
}

type account struct {
	user model.User
	hash []byte
}

type survey struct {
	model.Survey
	archived bool
}

type Server struct {
	e      *echo.Echo
	secret []byte
	opts   Options
	log    *slog.Logger

	mu         sync.Mutex
	accounts   map[string]*account
	workspaces map[string]*model.Workspace
	surveys    map[string]*survey
	revoked    map[string]bool
	failures   map[string]int
	hits       map[string]int
}

func New(opts Options) (*Server, error) {
	secret := opts.Secret
	if strings.TrimSpace(secret) == "" {
		secret = uuid.NewString()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		secret:     []byte(secret),
		opts:       opts,
		log:        log,
		accounts:   map[string]*account{},
		workspaces: map[string]*model.Workspace{},
		surveys:    map[string]*survey{},
		revoked:    map[string]bool{},
		failures:   map[string]int{},
		hits:       map[string]int{},
	}
	if !opts.Empty {
		if err := s.seed(); err != nil {
			return nil, err
		}
	}
	s.e = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.e.Start(addr) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Fail makes every request to route (e.g. "PUT /api/v1/surveys/:id/status")
// answer with status until cleared with status 0.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// Hits reports how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) AddUser(email, password, name string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.User{}, errors.New("email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{
		ID:        int64(len(s.accounts) + 1),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	s.accounts[email] = &account{user: u, hash: hash}
	return u, nil
}

func (s *Server) AddWorkspace(w model.Workspace) model.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if w.CreatedAt == "" {
		w.CreatedAt = now
	}
	if w.UpdatedAt == "" {
		w.UpdatedAt = w.CreatedAt
	}
	cp := w
	s.workspaces[w.ID] = &cp
	return w
}

// AddSurvey stores a survey; archived puts it in the archive listing.
func (s *Server) AddSurvey(sv model.Survey, archived bool) model.Survey {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sv.ID == "" {
		sv.ID = uuid.NewString()
	}
	if sv.Status == "" {
		sv.Status = model.SurveyStatusDraft
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if sv.CreatedAt == "" {
		sv.CreatedAt = now
	}
	if sv.UpdatedAt == "" {
		sv.UpdatedAt = sv.CreatedAt
	}
	s.surveys[sv.ID] = &survey{Survey: sv, archived: archived}
	return sv
}

// Survey returns the stored survey, if any.
func (s *Server) Survey(id string) (model.Survey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[id]
	if !ok {
		return model.Survey{}, false
	}
	return sv.Survey, true
}

func (s *Server) seed() error {
	if _, err := s.AddUser(DefaultEmail, DefaultPassword, "Admin"); err != nil {
		return err
	}
	inactive := false
	s.AddWorkspace(model.Workspace{ID: "w1", UserID: 1, Title: "Psychology Lab", UniversityName: "Seoul National University"})
	s.AddWorkspace(model.Workspace{ID: "w2", UserID: 1, Title: "Marketing 101"})
	s.AddWorkspace(model.Workspace{ID: "w3", UserID: 1, Title: "Old Pilot", IsActive: &inactive, Status: "deleted",
		DeletedAt: time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)})

	s.AddSurvey(model.Survey{ID: "s1", WorkspaceID: "w1", Title: "Sleep habits", Description: "Weekly **sleep** quality check.", Status: model.SurveyStatusInactive, ScaleMax: 7}, false)
	s.AddSurvey(model.Survey{ID: "s2", WorkspaceID: "w1", Title: "Stress baseline", Status: model.SurveyStatusActive, ResponseCount: 42}, false)
	s.AddSurvey(model.Survey{ID: "s3", WorkspaceID: "w2", Title: "Brand recall", Status: model.SurveyStatusDraft}, true)
	s.AddSurvey(model.Survey{ID: "s4", WorkspaceID: "w2", Title: "Ad fatigue", Status: model.SurveyStatusInactive}, false)
	return nil
}

func (s *Server) sortedSurveys(keep func(*survey) bool) []model.Survey {
	out := []model.Survey{}
	for _, sv := range s.surveys {
		if keep(sv) {
			cp := sv.Survey
			if w, ok := s.workspaces[cp.WorkspaceID]; ok {
				cp.WorkspaceName = w.Title
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) issueToken(u model.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   u.Email,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
