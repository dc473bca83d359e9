package mockapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"survey-admin/internal/model"
)

const ctxAccount = "account"

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.accessLog, s.injectFailures)

	v1 := e.Group("/api/v1")
	v1.POST("/auth/login", s.login)

	authed := v1.Group("", s.requireAuth)
	authed.GET("/auth/me", s.me)
	authed.POST("/auth/logout", s.logout)

	authed.GET("/workspaces", s.listWorkspaces)
	authed.GET("/workspaces/", s.listWorkspaces)
	authed.GET("/workspaces/trash", s.listArchived)
	authed.POST("/workspaces/:id/trash", s.trashWorkspace)
	authed.POST("/workspaces/:id/restore", s.restoreWorkspace)
	authed.DELETE("/workspaces/:id/permanent", s.purgeWorkspace)

	authed.GET("/surveys/workspace/:id", s.listSurveys)
	authed.PUT("/surveys/:id/status", s.setStatus)
	authed.POST("/surveys/:id/archive", s.archiveSurvey)
	authed.DELETE("/surveys/:id", s.purgeSurvey)
	return e
}

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Info("request",
			"method", c.Request().Method,
			"route", c.Path(),
			"status", c.Response().Status,
			"request_id", c.Request().Header.Get("X-Request-ID"),
			"duration_ms", time.Since(start).Milliseconds())
		return err
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Request().Method + " " + c.Path()
		s.mu.Lock()
		s.hits[route]++
		status := s.failures[route]
		s.mu.Unlock()
		if status != 0 {
			return c.JSON(status, echo.Map{"detail": "injected failure"})
		}
		return next(c)
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Not authenticated"})
		}
		claims, err := s.parseToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Could not validate credentials"})
		}
		s.mu.Lock()
		acct, ok := s.accounts[claims.Subject]
		revoked := s.revoked[claims.ID]
		s.mu.Unlock()
		if !ok || revoked {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Could not validate credentials"})
		}
		c.Set(ctxAccount, acct)
		c.Set("jti", claims.ID)
		return next(c)
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.mu.Lock()
	acct, ok := s.accounts[email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Incorrect email or password"})
	}
	tok, err := s.issueToken(acct.user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"detail": "token error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": tok, "token_type": "bearer"})
}

func (s *Server) me(c echo.Context) error {
	acct := c.Get(ctxAccount).(*account)
	return c.JSON(http.StatusOK, acct.user)
}

func (s *Server) logout(c echo.Context) error {
	jti, _ := c.Get("jti").(string)
	s.mu.Lock()
	s.revoked[jti] = true
	s.mu.Unlock()
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}

func (s *Server) listWorkspaces(c echo.Context) error {
	filter := c.QueryParam("is_active")
	if filter != "" && s.opts.RejectActiveFilter {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"detail": "unknown query parameter is_active"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Workspace{}
	for _, w := range s.workspaces {
		if filter == "true" && w.Trashed() {
			continue
		}
		cp := *w
		for _, sv := range s.surveys {
			if sv.WorkspaceID == w.ID {
				cp.SurveyCount++
				cp.ResponseCount += sv.ResponseCount
			}
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return c.JSON(http.StatusOK, out)
}

// listArchived mirrors the upstream quirk of serving the survey archive
// under the workspace trash path.
func (s *Server) listArchived(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sortedSurveys(func(sv *survey) bool { return sv.archived })
	page := model.ArchivedPage{Surveys: list, Total: len(list)}
	if s.opts.WrapArchive {
		return c.JSON(http.StatusOK, echo.Map{"data": page})
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) workspaceOr404(c echo.Context) (*model.Workspace, error) {
	w, ok := s.workspaces[c.Param("id")]
	if !ok {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"detail": "Workspace not found"})
	}
	return w, nil
}

func (s *Server) trashWorkspace(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.workspaceOr404(c)
	if w == nil {
		return err
	}
	inactive := false
	w.IsActive = &inactive
	w.Status = "deleted"
	w.DeletedAt = time.Now().UTC().Format(time.RFC3339)
	w.UpdatedAt = w.DeletedAt
	return c.JSON(http.StatusOK, echo.Map{"message": "Workspace moved to trash"})
}

func (s *Server) restoreWorkspace(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.workspaceOr404(c)
	if w == nil {
		return err
	}
	if !w.Trashed() {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Workspace is not in trash"})
	}
	active := true
	w.IsActive = &active
	w.Status = ""
	w.DeletedAt = ""
	w.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(http.StatusOK, echo.Map{"message": "Workspace restored"})
}

func (s *Server) purgeWorkspace(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.workspaceOr404(c)
	if w == nil {
		return err
	}
	if !w.Trashed() {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Workspace must be in trash before permanent deletion"})
	}
	delete(s.workspaces, w.ID)
	for id, sv := range s.surveys {
		if sv.WorkspaceID == w.ID {
			delete(s.surveys, id)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Workspace permanently deleted"})
}

func (s *Server) listSurveys(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.workspaces[id]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Workspace not found"})
	}
	return c.JSON(http.StatusOK, s.sortedSurveys(func(sv *survey) bool { return sv.WorkspaceID == id }))
}

type statusReq struct {
	Status model.SurveyStatus `json:"status"`
}

func (s *Server) setStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "invalid body"})
	}
	switch req.Status {
	case model.SurveyStatusDraft, model.SurveyStatusActive, model.SurveyStatusInactive:
	default:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"detail": "invalid status"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Survey not found"})
	}
	sv.Status = req.Status
	sv.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if req.Status != model.SurveyStatusDraft {
		sv.archived = false
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Status updated"})
}

func (s *Server) archiveSurvey(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Survey not found"})
	}
	sv.archived = true
	sv.Status = model.SurveyStatusDraft
	sv.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(http.StatusOK, echo.Map{"message": "Survey archived"})
}

func (s *Server) purgeSurvey(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.surveys[id]; !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Survey not found"})
	}
	delete(s.surveys, id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Survey deleted"})
}
