// Package api is the HTTP client for the survey backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"survey-admin/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	prefix = "/api/v1"
)

// TokenSource supplies the Authorization header parts.
type TokenSource interface {
	Token() (tokenType, token string)
}

// Error is a non-2xx response.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Body)
	if d := detail(e.Body); d != "" {
		msg = d
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// detail extracts FastAPI-style {"detail": "..."} messages.
func detail(body string) string {
	var v struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return ""
	}
	if s, ok := v.Detail.(string); ok {
		return s
	}
	return ""
}

var ErrUnauthorized = errors.New("unauthorized")

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	// OnUnauthorized runs after any 401 response except from login.
	OnUnauthorized func(ctx context.Context)
	Logger         *slog.Logger
	HTTPClient     *http.Client
}

type Client struct {
	base     string
	http     *http.Client
	tokens   TokenSource
	onUnauth func(ctx context.Context)
	log      *slog.Logger
}

func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		to := opts.Timeout
		if to <= 0 {
			to = DefaultTimeout
		}
		hc = &http.Client{Timeout: to}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{base: base, http: hc, tokens: opts.Tokens, onUnauth: opts.OnUnauthorized, log: log}
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+prefix+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if tt, tok, ok := tokenFrom(ctx); ok {
		req.Header.Set("Authorization", tt+" "+tok)
	} else if c.tokens != nil {
		if tt, tok := c.tokens.Token(); tok != "" {
			if tt == "" {
				tt = "Bearer"
			}
			req.Header.Set("Authorization", tt+" "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.log.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
		if resp.StatusCode == http.StatusUnauthorized && path != "/auth/login" && c.onUnauth != nil {
			c.onUnauth(ctx)
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return TokenResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return TokenResponse{}, errors.New("login: empty access token")
	}
	return out, nil
}

// SignIn exchanges credentials for a token and fetches the matching user
// record with it. Nothing is persisted.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (TokenResponse, model.User, error) {
	tr, err := c.Login(ctx, creds)
	if err != nil {
		return TokenResponse{}, model.User{}, err
	}
	u, err := c.Me(WithToken(ctx, tr.TokenType, tr.AccessToken))
	if err != nil {
		return TokenResponse{}, model.User{}, err
	}
	return tr, u, nil
}

type tokenKey struct{}

type ctxToken struct{ tt, tok string }

// WithToken makes requests made with ctx authenticate with the given token
// instead of the client's TokenSource.
func WithToken(ctx context.Context, tokenType, token string) context.Context {
	if strings.TrimSpace(tokenType) == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return context.WithValue(ctx, tokenKey{}, ctxToken{tt: tokenType, tok: token})
}

func tokenFrom(ctx context.Context) (string, string, bool) {
	t, ok := ctx.Value(tokenKey{}).(ctxToken)
	if !ok || t.tok == "" {
		return "", "", false
	}
	return t.tt, t.tok, true
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u)
	return u, err
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ListWorkspaces returns the active workspaces. Backends that reject the
// is_active filter get an unfiltered request filtered here.
func (c *Client) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	var out []model.Workspace
	err := c.do(ctx, http.MethodGet, "/workspaces/?is_active=true", nil, &out)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, ErrUnauthorized) || ctx.Err() != nil {
		return nil, err
	}
	c.log.Warn("filtered workspace listing failed, retrying unfiltered", "err", err)
	all, err2 := c.ListAllWorkspaces(ctx)
	if err2 != nil {
		return nil, err2
	}
	active := make([]model.Workspace, 0, len(all))
	for _, w := range all {
		if !w.Trashed() {
			active = append(active, w)
		}
	}
	return active, nil
}

func (c *Client) ListAllWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	var out []model.Workspace
	err := c.do(ctx, http.MethodGet, "/workspaces/", nil, &out)
	return out, err
}

func (c *Client) ListSurveys(ctx context.Context, workspaceID string) ([]model.Survey, error) {
	var out []model.Survey
	err := c.do(ctx, http.MethodGet, "/surveys/workspace/"+url.PathEscape(workspaceID), nil, &out)
	return out, err
}

// ListArchivedSurveys reads the archive listing. Some deployments wrap the
// payload in {"data": ...}.
func (c *Client) ListArchivedSurveys(ctx context.Context) (model.ArchivedPage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/workspaces/trash", nil, &raw); err != nil {
		return model.ArchivedPage{}, err
	}
	var wrapped struct {
		Data *model.ArchivedPage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return *wrapped.Data, nil
	}
	var page model.ArchivedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return model.ArchivedPage{}, fmt.Errorf("decode archive listing: %w", err)
	}
	return page, nil
}

func (c *Client) SetSurveyStatus(ctx context.Context, id string, status model.SurveyStatus) error {
	return c.do(ctx, http.MethodPut, "/surveys/"+url.PathEscape(id)+"/status",
		map[string]string{"status": string(status)}, nil)
}

// ArchiveSurvey moves a survey to the archive listing.
func (c *Client) ArchiveSurvey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/surveys/"+url.PathEscape(id)+"/archive", nil, nil)
}

func (c *Client) PurgeSurvey(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/surveys/"+url.PathEscape(id), nil, nil)
}

func (c *Client) TrashWorkspace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/workspaces/"+url.PathEscape(id)+"/trash", nil, nil)
}

func (c *Client) RestoreWorkspace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/workspaces/"+url.PathEscape(id)+"/restore", nil, nil)
}

func (c *Client) PurgeWorkspace(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workspaces/"+url.PathEscape(id)+"/permanent", nil, nil)
}
