package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"survey-admin/internal/mockapi"
	"survey-admin/internal/trash"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()
	return runCLIWithInput(t, "", args)
}

func runCLIWithInput(t *testing.T, stdin string, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

type cliEnv struct {
	t   *testing.T
	srv *mockapi.Server
	url string
	dir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("SURVEYADMIN_REFETCH_DELAY", "1ms")
	t.Setenv("SURVEYADMIN_FORMAT", "")
	t.Setenv("SURVEYADMIN_PASSWORD", "")

	srv, err := mockapi.New(mockapi.Options{})
	if err != nil {
		t.Fatalf("mockapi.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &cliEnv{t: t, srv: srv, url: ts.URL, dir: t.TempDir()}
}

func (e *cliEnv) args(args ...string) []string {
	return append([]string{"--dir", e.dir, "--api", e.url, "--storage", "file"}, args...)
}

// mustEnv runs a command and decodes its JSON envelope.
func (e *cliEnv) mustEnv(stdin string, args ...string) map[string]any {
	e.t.Helper()
	stdout, stderr, err := runCLIWithInput(e.t, stdin, e.args(args...))
	if err != nil {
		e.t.Fatalf("command failed: surveyadmin %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, string(stderr), string(stdout))
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		e.t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, string(stdout), args)
	}
	if _, ok := env["data"]; !ok {
		e.t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	if meta, ok := env["meta"]; ok && meta != nil {
		if _, ok := meta.(map[string]any); !ok {
			e.t.Fatalf("expected meta to be object; got %T", meta)
		}
	}
	return env
}

func (e *cliEnv) login() {
	e.t.Helper()
	e.mustEnv("", "login", "--email", mockapi.DefaultEmail, "--password", mockapi.DefaultPassword)
}

func (e *cliEnv) listIDs(tab string) []string {
	e.t.Helper()
	env := e.mustEnv("", "trash", "list")
	rows, _ := env["data"].(map[string]any)[tab].([]any)
	var ids []string
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			id, _ := m["id"].(string)
			ids = append(ids, id)
		}
	}
	return ids
}

func hasID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestCLI_LoginWhoamiAndList(t *testing.T) {
	e := newCLIEnv(t)

	env := e.mustEnv("", "login", "--email", mockapi.DefaultEmail, "--password", mockapi.DefaultPassword)
	if email, _ := env["data"].(map[string]any)["email"].(string); email != mockapi.DefaultEmail {
		t.Fatalf("login data email = %q", email)
	}
	if _, ok := env["meta"].(map[string]any)["expiresAt"]; !ok {
		t.Fatalf("expected expiresAt in login meta; got %#v", env["meta"])
	}
	if _, ok := env["_hints"].([]any); !ok {
		t.Fatalf("expected _hints list; got %#v", env["_hints"])
	}

	who := e.mustEnv("", "whoami")
	if email, _ := who["data"].(map[string]any)["email"].(string); email != mockapi.DefaultEmail {
		t.Fatalf("whoami email = %q", email)
	}
	if expired, _ := who["meta"].(map[string]any)["expired"].(bool); expired {
		t.Fatalf("fresh token reported expired")
	}

	list := e.mustEnv("", "trash", "list")
	counts, _ := list["meta"].(map[string]any)["counts"].(map[string]any)
	if counts["trash"] != float64(2) || counts["archive"] != float64(1) || counts["workspaces"] != float64(1) {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}

func TestCLI_LoginPasswordFromStdin(t *testing.T) {
	e := newCLIEnv(t)
	e.mustEnv(mockapi.DefaultPassword+"\n", "login", "--email", mockapi.DefaultEmail)
	e.mustEnv("", "whoami", "--offline")
}

func TestCLI_LoginRejectsBadPassword(t *testing.T) {
	e := newCLIEnv(t)
	_, _, err := runCLI(t, e.args("login", "--email", mockapi.DefaultEmail, "--password", "wrong"))
	if err == nil {
		t.Fatalf("expected login to fail")
	}
	_, _, err = runCLI(t, e.args("whoami", "--offline"))
	if !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected errNotLoggedIn after failed login, got %v", err)
	}
}

func TestCLI_RequiresSession(t *testing.T) {
	e := newCLIEnv(t)
	for _, args := range [][]string{
		{"trash", "list"},
		{"trash", "restore", "s1", "--yes"},
		{"surveys", "trash", "s2"},
		{"workspaces", "trash", "w1"},
	} {
		_, _, err := runCLI(t, e.args(args...))
		if !errors.Is(err, errNotLoggedIn) {
			t.Fatalf("%v: expected errNotLoggedIn, got %v", args, err)
		}
	}
}

func TestCLI_RestoreWithYes(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	env := e.mustEnv("", "trash", "restore", "s1", "--yes")
	data := env["data"].(map[string]any)
	if data["confirmed"] != true {
		t.Fatalf("expected confirmed restore; got %#v", data)
	}
	if msg, _ := data["message"].(string); !strings.Contains(msg, "restored") {
		t.Fatalf("unexpected message %q", msg)
	}
	if sv, _ := e.srv.Survey("s1"); sv.Status != "active" {
		t.Fatalf("backend status = %q, want active", sv.Status)
	}
	if hasID(e.listIDs("trash"), "s1") {
		t.Fatalf("s1 still listed in the trash")
	}
}

func TestCLI_PurgeDeclinedOnStdin(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	stdout, stderr, err := runCLIWithInput(t, "n\n", e.args("trash", "purge", "s4"))
	if err != nil {
		t.Fatalf("purge: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(string(stderr), "[y/N]") {
		t.Fatalf("expected a prompt on stderr; got:\n%s", stderr)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	if env["data"].(map[string]any)["confirmed"] != false {
		t.Fatalf("expected declined purge; got %#v", env["data"])
	}
	if _, ok := e.srv.Survey("s4"); !ok {
		t.Fatalf("declined purge must not reach the backend")
	}
}

func TestCLI_WorkspacePurgeConfirmedOnStdin(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	env := e.mustEnv("y\n", "workspaces", "purge", "w3")
	if env["data"].(map[string]any)["confirmed"] != true {
		t.Fatalf("expected confirmed purge; got %#v", env["data"])
	}
	if hasID(e.listIDs("workspaces"), "w3") {
		t.Fatalf("w3 still listed after purge")
	}
}

func TestCLI_PurgeUnknownID(t *testing.T) {
	e := newCLIEnv(t)
	e.login()
	if _, _, err := runCLI(t, e.args("trash", "purge", "nope", "--yes")); err == nil {
		t.Fatalf("expected an error for an unknown id")
	}
	if _, _, err := runCLI(t, e.args("trash", "purge", "s1", "--tab", "bin", "--yes")); err == nil {
		t.Fatalf("expected an error for an unknown tab")
	}
}

func TestCLI_SurveyTransitions(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	e.mustEnv("", "surveys", "archive", "s2")
	if !hasID(e.listIDs("archive"), "s2") {
		t.Fatalf("s2 should be archived")
	}

	e.mustEnv("", "workspaces", "trash", "w2")
	if !hasID(e.listIDs("workspaces"), "w2") {
		t.Fatalf("w2 should be in the trashed workspaces")
	}
}

func TestCLI_SurveyMoveReportsRefetchFailure(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	// Break the archive listing when the status change arrives, so only
	// the follow-up refetch fails.
	h := e.srv.Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/status") {
			e.srv.Fail("GET /api/v1/workspaces/trash", http.StatusServiceUnavailable)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	e.url = ts.URL

	env := e.mustEnv("", "surveys", "trash", "s2")
	if msg, _ := env["data"].(map[string]any)["message"].(string); !strings.Contains(msg, "trash") {
		t.Fatalf("unexpected message %q", msg)
	}
	warnings, _ := env["meta"].(map[string]any)["warnings"].([]any)
	found := false
	for _, w := range warnings {
		if s, _ := w.(string); strings.Contains(s, "archived surveys") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the refetch failure in meta.warnings; got %#v", env["meta"])
	}
}

func TestOutcome(t *testing.T) {
	ok := trash.Notification{Severity: trash.SeveritySuccess, Message: "done"}
	refetch := trash.Notification{Severity: trash.SeverityError, Message: "Failed to load archived surveys: 503"}
	failed := trash.Notification{Severity: trash.SeverityError, Message: "Failed to archive survey: 500"}

	cases := []struct {
		name     string
		notes    []trash.Notification
		wantMsg  string
		wantWarn int
		wantErr  bool
	}{
		{"success only", []trash.Notification{ok}, "done", 0, false},
		{"success then refetch error", []trash.Notification{ok, refetch}, "done", 1, false},
		{"failure", []trash.Notification{failed}, "", 0, true},
		{"nothing", nil, "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, warnings, err := outcome(tc.notes)
			if msg != tc.wantMsg || len(warnings) != tc.wantWarn || (err != nil) != tc.wantErr {
				t.Fatalf("outcome = %q, %v, %v", msg, warnings, err)
			}
		})
	}
}

func TestCLI_LogoutClearsSession(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	stdout, stderr, err := runCLI(t, e.args("logout"))
	if err != nil {
		t.Fatalf("logout: %v\nstderr:\n%s", err, stderr)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	if env["data"].(map[string]any)["hadSession"] != true {
		t.Fatalf("expected hadSession; got %#v", env["data"])
	}
	if len(bytes.TrimSpace(stderr)) == 0 {
		t.Fatalf("expected the logout notice on stderr")
	}

	if _, _, err := runCLI(t, e.args("whoami", "--offline")); !errors.Is(err, errNotLoggedIn) {
		t.Fatalf("expected errNotLoggedIn after logout, got %v", err)
	}
}

func TestCLI_TableFormat(t *testing.T) {
	e := newCLIEnv(t)
	e.login()

	stdout, _, err := runCLI(t, e.args("--format", "table", "trash", "list"))
	if err != nil {
		t.Fatalf("trash list: %v", err)
	}
	out := string(stdout)
	for _, want := range []string{"Sleep habits", "Brand recall", "Old Pilot"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv("SURVEYADMIN_API_URL", "")
	t.Setenv("SURVEYADMIN_STORAGE", "")
	t.Setenv("SURVEYADMIN_LOG_LEVEL", "")

	if _, _, err := runCLI(t, []string{"--dir", e.dir, "config", "set"}); err == nil {
		t.Fatalf("expected config set without flags to fail")
	}
	if _, _, err := runCLI(t, []string{"--dir", e.dir, "config", "set", "--storage-backend", "floppy"}); err == nil {
		t.Fatalf("expected an unknown backend to be rejected")
	}

	stdout, stderr, err := runCLI(t, []string{"--dir", e.dir, "config", "set", "--api-url", "http://api.test", "--storage-backend", "memory", "--log-level", "DEBUG"})
	if err != nil {
		t.Fatalf("config set: %v\n%s", err, stderr)
	}
	_ = stdout

	stdout, _, err = runCLI(t, []string{"--dir", e.dir, "config", "show"})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	data := env["data"].(map[string]any)
	if data["apiUrl"] != "http://api.test" || data["storage"] != "memory" || data["logLevel"] != "debug" {
		t.Fatalf("unexpected settings: %#v", data)
	}

	// Flags still win over config.json.
	stdout, _, err = runCLI(t, []string{"--dir", e.dir, "--api", "http://flag.test", "config", "show"})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(string(stdout), "http://flag.test") {
		t.Fatalf("flag did not override config.json:\n%s", stdout)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		name   string
		token  string
		wantOK bool
	}{
		{"with exp", signed, true},
		{"without exp", noExp, false},
		{"opaque", "not-a-jwt", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tokenExpiry(tc.token)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && !got.Equal(exp) {
				t.Fatalf("expiry = %v, want %v", got, exp)
			}
		})
	}
}

func TestCLI_Docs(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := runCLI(t, []string{"--dir", dir, "docs"})
	if err != nil {
		t.Fatalf("docs: %v", err)
	}
	if !strings.Contains(string(stdout), `"lifecycle"`) {
		t.Fatalf("topic list missing lifecycle:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, []string{"--dir", dir, "docs", "lifecycle", "--raw"})
	if err != nil {
		t.Fatalf("docs lifecycle: %v", err)
	}
	if !strings.HasPrefix(string(stdout), "# Survey lifecycle") {
		t.Fatalf("raw output:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, []string{"--dir", dir, "docs", "keys", "--render"})
	if err != nil {
		t.Fatalf("docs keys --render: %v", err)
	}
	if !strings.Contains(string(stdout), "Dashboard keys") {
		t.Fatalf("rendered output:\n%s", stdout)
	}

	if _, _, err := runCLI(t, []string{"--dir", dir, "docs", "nope"}); err == nil {
		t.Fatalf("expected unknown topic error")
	}
}
