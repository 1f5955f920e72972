package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/cms"
	"github.com/Zachkp/portfolio/internal/render"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/unlock"
)

const atlasYAML = `
id: atlas
title: Atlas booking flow
summary: Booking for a travel startup
blocks:
  - type: section-title
    key: overview
    title: Overview
    isSkipLinkStart: true
  - type: mission
    key: mission
    visibility: both
    body: Make booking calm.
  - type: protected
    key: gate
    title: Confidential
    password: s3cret
    contactEmail: owner@example.com
  - type: testimonial
    key: quote
    visibility: unlocked-only
    quote: It shipped on time.
  - type: section-title
    key: finals
    title: Final designs
    isSkipLinkEnd: true
  - type: gallery
    key: shots
    images:
      - url: /images/atlas-1.png
        alt: Booking screen
`

const notesYAML = `
id: notes
title: Field notes
blocks:
  - type: text
    key: intro
    body: Nothing secret here.
`

type sentMail struct {
	to, replyTo, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, replyTo, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, replyTo: replyTo, subject: subject, body: body})
	return nil
}

type failingStorage struct{}

func (failingStorage) Get(context.Context, string, string) (string, error) {
	return "", errors.New("storage disabled")
}
func (failingStorage) Update(context.Context, string, string, func(string, bool) string) error {
	return errors.New("storage disabled")
}
func (failingStorage) Clear(context.Context, string) error { return errors.New("storage disabled") }
func (failingStorage) Touch(context.Context, string) error { return errors.New("storage disabled") }

// browser replays the cookies the server hands out, like a single tab would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (b *browser) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, path, "", nil)
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (b *browser) postJSON(path, body string) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, path, "application/json", strings.NewReader(body))
}

type fixture struct {
	srv     *Server
	storage unlock.Storage
	mailer  *fakeMailer
}

func newFixture(t *testing.T, storage unlock.Storage) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects", "atlas.yaml"), []byte(atlasYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects", "notes.yaml"), []byte(notesYAML), 0o644))

	sessions, err := session.NewManager(session.Config{HashKey: []byte("test-hash-key-test-hash-key-0123")})
	require.NoError(t, err)
	renderer, err := render.New()
	require.NoError(t, err)
	if storage == nil {
		storage = unlock.NewMemoryStorage()
	}
	mailer := &fakeMailer{}

	srv, err := New(Options{
		Projects:       cms.New(cms.Options{ContentDir: dir}),
		Storage:        storage,
		Sessions:       sessions,
		Renderer:       renderer,
		Mailer:         mailer,
		SkipLinkMargin: 100,
		Intro:          "Product designer.",
	})
	require.NoError(t, err)
	return &fixture{srv: srv, storage: storage, mailer: mailer}
}

func (f *fixture) browser(t *testing.T) *browser {
	return &browser{t: t, handler: f.srv, cookies: map[string]*http.Cookie{}}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.browser(t).get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestIndexListsProjects(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.browser(t).get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "Product designer.")
	require.Contains(t, body, `href="/projects/atlas"`)
	require.Contains(t, body, `href="/projects/notes"`)
}

func TestLockedProjectStopsAtProtectedBlock(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.browser(t).get("/projects/atlas")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `id="overview"`)
	require.Contains(t, body, `id="mission"`)
	require.Contains(t, body, `id="gate"`)
	require.Contains(t, body, `action="/projects/atlas/unlock"`)
	require.NotContains(t, body, `id="quote"`)
	require.NotContains(t, body, `id="finals"`)
	require.NotContains(t, body, `id="shots"`)
	require.NotContains(t, body, "s3cret")
	// end anchor is cut off, so no skip link
	require.NotContains(t, body, `id="skip-link"`)
}

func TestUnlockWithWrongPasswordAsksToRetry(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	rec := b.postForm("/projects/atlas/unlock", url.Values{"password": {"S3CRET"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `id="retry-gate"`)
	require.NotContains(t, body, `id="quote"`)

	rec = b.get("/projects/atlas")
	require.NotContains(t, rec.Body.String(), `id="retry-gate"`)
}

func TestUnlockRevealsContentForTheSession(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)
	b.get("/projects/atlas")

	rec := b.postForm("/projects/atlas/unlock", url.Values{"password": {"s3cret"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `id="mission"`)
	require.Contains(t, body, `id="quote"`)
	require.Contains(t, body, `id="shots"`)
	// an unset protected block is locked-only
	require.NotContains(t, body, `id="gate"`)
	require.Contains(t, body, `id="skip-link"`)
	require.Contains(t, body, `href="#finals"`)

	rec = b.get("/projects/atlas")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `id="quote"`)

	// another browser session is still locked
	other := f.browser(t).get("/projects/atlas")
	require.NotContains(t, other.Body.String(), `id="quote"`)
}

func TestUnlockRendersEvenWhenStorageFails(t *testing.T) {
	f := newFixture(t, failingStorage{})
	b := f.browser(t)

	rec := b.postForm("/projects/atlas/unlock", url.Values{"password": {"s3cret"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `id="quote"`)

	rec = b.get("/projects/atlas")
	require.NotContains(t, rec.Body.String(), `id="quote"`)
}

func TestUnlockWithoutPasswordIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.browser(t).postForm("/projects/notes/unlock", url.Values{"password": {"x"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingProject(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	rec := b.get("/projects/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "doesn&#39;t exist")

	rec = b.get("/api/projects/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionResetForgetsUnlocks(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	b.postForm("/projects/atlas/unlock", url.Values{"password": {"s3cret"}})
	oldCookie := b.cookies["portfolio_session"]
	require.NotNil(t, oldCookie)

	rec := b.do(http.MethodPost, "/session/reset", "", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotEqual(t, oldCookie.Value, b.cookies["portfolio_session"].Value)

	rec = b.get("/projects/atlas")
	require.NotContains(t, rec.Body.String(), `id="quote"`)
}

func TestRequestAccessSendsMail(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	rec := b.postForm("/projects/atlas/request-access", url.Values{
		"fullName": {"Ada Lovelace"},
		"email":    {"ada@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "request-success")

	require.Len(t, f.mailer.sent, 1)
	sent := f.mailer.sent[0]
	require.Equal(t, "owner@example.com", sent.to)
	require.Equal(t, "ada@example.com", sent.replyTo)
	require.Contains(t, sent.subject, "Atlas booking flow")
	require.Contains(t, sent.body, "Ada Lovelace")

	rec = b.postForm("/projects/atlas/request-access", url.Values{"fullName": {"Ada"}})
	require.Contains(t, rec.Body.String(), "request-error")
	require.Len(t, f.mailer.sent, 1)

	f.mailer.err = errors.New("smtp down")
	rec = b.postForm("/projects/atlas/request-access", url.Values{
		"fullName": {"Ada Lovelace"},
		"email":    {"ada@example.com"},
	})
	require.Contains(t, rec.Body.String(), "request-error")

	rec = b.postForm("/projects/notes/request-access", url.Values{
		"fullName": {"Ada Lovelace"},
		"email":    {"ada@example.com"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type apiProjectResponse struct {
	ID       string `json:"id"`
	Unlocked bool   `json:"unlocked"`
	Blocks   []struct {
		Type string `json:"type"`
		Key  string `json:"key"`
	} `json:"blocks"`
	SkipLink *struct {
		Start  string  `json:"start"`
		End    string  `json:"end"`
		Margin float64 `json:"margin"`
	} `json:"skipLink"`
}

func (r apiProjectResponse) keys() []string {
	keys := make([]string, len(r.Blocks))
	for i, b := range r.Blocks {
		keys[i] = b.Key
	}
	return keys
}

func TestAPIProjectFollowsTheGate(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	rec := b.get("/api/projects/atlas")
	require.Equal(t, http.StatusOK, rec.Code)
	var locked apiProjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locked))
	require.False(t, locked.Unlocked)
	require.Equal(t, []string{"overview", "mission", "gate"}, locked.keys())
	require.Nil(t, locked.SkipLink)

	rec = b.postJSON("/api/projects/atlas/unlock", `{"password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"result":"mismatch","unlocked":false}`, rec.Body.String())

	rec = b.postJSON("/api/projects/atlas/unlock", `{"password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"result":"unlocked","unlocked":true}`, rec.Body.String())

	rec = b.get("/api/projects/atlas")
	var unlocked apiProjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unlocked))
	require.True(t, unlocked.Unlocked)
	require.Equal(t, []string{"overview", "mission", "quote", "finals", "shots"}, unlocked.keys())
	require.NotNil(t, unlocked.SkipLink)
	require.Equal(t, "overview", unlocked.SkipLink.Start)
	require.Equal(t, "finals", unlocked.SkipLink.End)
	require.Equal(t, float64(100), unlocked.SkipLink.Margin)

	rec = b.postJSON("/api/projects/atlas/unlock", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIRawProjectShipsEverything(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.browser(t).get("/api/projects/atlas/raw")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"password":"s3cret"`)

	var raw apiProjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Equal(t, []string{"overview", "mission", "gate", "quote", "finals", "shots"}, raw.keys())
}

func TestAPIList(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.browser(t).get("/api/projects")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Projects []cms.Summary `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Projects, 2)
}
