package cms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/content"
)

const alphaYAML = `
id: alpha
title: Alpha redesign
summary: Rebuilding checkout
blocks:
  - type: mission
    key: mission
    visibility: both
    body: Make checkout calm.
  - type: protected
    key: gate
    password: x
    contactEmail: hello@example.com
  - type: testimonial
    key: quote
    visibility: unlocked-only
    quote: It shipped.
`

func writeProject(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "projects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects", id+".yaml"), []byte(body), 0o644))
}

func TestProjectFromLocalFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProject(t, dir, "alpha", alphaYAML)
	c := New(Options{ContentDir: dir})

	p, err := c.Project(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, "Alpha redesign", p.Title)
	require.Equal(t, []string{"mission", "gate", "quote"}, content.Keys(p.Blocks))

	gate, ok := p.Blocks[1].(content.Protected)
	require.True(t, ok)
	require.Equal(t, "x", gate.Password)

	_, err = c.Project(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = c.Project(context.Background(), "../etc/passwd")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestListLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProject(t, dir, "beta", "title: Beta\n")
	writeProject(t, dir, "alpha", alphaYAML)

	list, err := New(Options{ContentDir: dir}).List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Summary{
		{ID: "alpha", Title: "Alpha redesign", Summary: "Rebuilding checkout"},
		{ID: "beta", Title: "Beta"},
	}, list)
}

func TestRemoteFetchIsSharedAndCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/alpha" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "alpha",
			"title": "Alpha",
			"blocks": []map[string]any{
				{"_type": "mission", "_key": "m"},
				{"_type": "protected", "_key": "p", "password": "x"},
			},
		})
	}))
	t.Cleanup(ts.Close)

	c := New(Options{BaseURL: ts.URL, ContentDir: t.TempDir(), HTTPClient: ts.Client()})

	var wg sync.WaitGroup
	results := make([]content.Project, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Project(context.Background(), "alpha")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, hits.Load())
	for i, p := range results {
		require.NoError(t, errs[i])
		require.Equal(t, []string{"m", "p"}, content.Keys(p.Blocks))
	}

	_, err := c.Project(context.Background(), "alpha")
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load(), "served from cache")
}

func TestSharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		<-release
		_, _ = w.Write([]byte(`{"id":"alpha","title":"Alpha","blocks":[{"_type":"mission","_key":"m"}]}`))
	}))
	t.Cleanup(ts.Close)

	// no local YAML, so a fallback would report the project as missing
	c := New(Options{BaseURL: ts.URL, ContentDir: t.TempDir(), HTTPClient: ts.Client()})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Project(ctxA, "alpha")
		errA <- err
	}()
	<-started

	type result struct {
		p   content.Project
		err error
	}
	resB := make(chan result, 1)
	go func() {
		p, err := c.Project(context.Background(), "alpha")
		resB <- result{p, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	require.Equal(t, "Alpha", b.p.Title)
	require.EqualValues(t, 1, hits.Load())
}

func TestCacheExpires(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id":"alpha","blocks":[]}`))
	}))
	t.Cleanup(ts.Close)

	c := New(Options{BaseURL: ts.URL, CacheTTL: time.Minute, HTTPClient: ts.Client()})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Project(context.Background(), "alpha")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = c.Project(context.Background(), "alpha")
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestRemoteNotFoundDoesNotFallBack(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	writeProject(t, dir, "alpha", alphaYAML)
	c := New(Options{BaseURL: ts.URL, ContentDir: dir, HTTPClient: ts.Client()})

	_, err := c.Project(context.Background(), "alpha")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	writeProject(t, dir, "alpha", alphaYAML)
	c := New(Options{BaseURL: ts.URL, ContentDir: dir, HTTPClient: ts.Client()})

	p, err := c.Project(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, "Alpha redesign", p.Title)
}

func TestPreloadWarmsCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProject(t, dir, "alpha", alphaYAML)
	c := New(Options{ContentDir: dir})

	c.Preload(context.Background(), []string{"alpha", "missing"})
	_, ok := c.cached("alpha")
	require.True(t, ok)
	_, ok = c.cached("missing")
	require.False(t, ok)

	c.Invalidate("alpha")
	_, ok = c.cached("alpha")
	require.False(t, ok)
}
