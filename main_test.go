package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/cms"
	"github.com/Zachkp/portfolio/internal/database"
	"github.com/Zachkp/portfolio/internal/logger"
	"github.com/Zachkp/portfolio/internal/render"
	"github.com/Zachkp/portfolio/internal/server"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/unlock"
)

const harborYAML = `
id: harbor
title: Harbor dashboard
blocks:
  - type: section-title
    key: process
    title: Process
    isSkipLinkStart: true
  - type: mission
    key: mission
    visibility: both
    body: Give operators one screen.
  - type: protected
    key: gate
    password: tide
  - type: section-title
    key: finals
    title: Final designs
    isSkipLinkEnd: true
  - type: gallery
    key: shots
`

func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects", "harbor.yaml"), []byte(harborYAML), 0o644))
	return dir
}

func newAdminEngine(t *testing.T) (*gin.Engine, *analytics.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "site.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	stats, err := analytics.New(context.Background(), db)
	require.NoError(t, err)

	sessions, err := session.NewManager(session.Config{HashKey: []byte("test-hash-key-test-hash-key-0123")})
	require.NoError(t, err)
	renderer, err := render.New()
	require.NoError(t, err)
	srv, err := server.New(server.Options{
		Projects: cms.New(cms.Options{ContentDir: writeContent(t)}),
		Storage:  unlock.NewMemoryStorage(),
		Sessions: sessions,
		Renderer: renderer,
	})
	require.NoError(t, err)

	adm, err := newAdmin(adminConfig{Username: "admin", Password: "hunter2"}, stats, logger.Nop())
	require.NoError(t, err)
	r := srv.Engine()
	setupAdminRoutes(r, adm)
	return r, stats
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func loginRequest(user, pass string) *http.Request {
	form := url.Values{"username": {user}, "password": {pass}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestAdminRequiresLogin(t *testing.T) {
	r, _ := newAdminEngine(t)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin/login", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: adminCookie, Value: "forged"})
	rec = serve(r, req)
	require.Equal(t, http.StatusFound, rec.Code)
}

func TestAdminLogin(t *testing.T) {
	r, stats := newAdminEngine(t)
	require.NoError(t, stats.RecordAttempt(context.Background(), "harbor", "sess", "unlocked"))

	rec := serve(r, loginRequest("admin", "wrong"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid credentials")

	rec = serve(r, loginRequest("admin", "hunter2"))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))

	var token *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == adminCookie {
			token = c
		}
	}
	require.NotNil(t, token)
	require.True(t, token.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(token)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "harbor")

	req = httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
	req.AddCookie(token)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total_unlocks":1`)
}

func TestPrivacyPage(t *testing.T) {
	r, _ := newAdminEngine(t)
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/privacy", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Do Not Track")
}

func TestPreviewLocked(t *testing.T) {
	dir := writeContent(t)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"preview", "--project", "harbor", "--content-dir", dir})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	got := out.String()
	require.Contains(t, got, "Harbor dashboard (locked): 3 of 5 blocks")
	require.Contains(t, got, "gate")
	require.NotContains(t, got, "shots")
	require.Contains(t, got, "No skip link")
}

func TestPreviewUnlocked(t *testing.T) {
	dir := writeContent(t)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"preview", "--project", "harbor", "--content-dir", dir, "--unlocked"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	got := out.String()
	require.Contains(t, got, "Harbor dashboard (unlocked): 4 of 5 blocks")
	require.Contains(t, got, "skip start")
	require.Contains(t, got, "skip end")
	// process 0, mission 160, finals 640
	require.Contains(t, got, "Skip link #finals visible for -100 <= y < 540, jumps to 640")
}

func TestPreviewRequiresProject(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"preview"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestComposeMessageKeepsHeadersOnOneLine(t *testing.T) {
	msg := string(composeMessage("site@example.com", "owner@example.com", "ada@example.com\r\nBcc: x@example.com", "Hi", "body"))
	require.Contains(t, msg, "Reply-To: ada@example.comBcc: x@example.com\r\n")
	require.NotContains(t, msg, "\r\nBcc:")
	require.True(t, strings.HasSuffix(msg, "\r\n\r\nbody\r\n"))
}

func TestSMTPMailerNeedsCredentials(t *testing.T) {
	err := smtpMailer{host: "localhost", port: "25"}.Send(context.Background(), "a@example.com", "b@example.com", "s", "b")
	require.Error(t, err)
}
