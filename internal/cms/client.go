// Package cms loads case-study projects from the headless CMS, falling back
// to YAML files on disk.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/logger"
)

// ErrNotFound is returned when no project exists for an id.
var ErrNotFound = errors.New("cms: not found")

const (
	defaultContentDir = "content"
	defaultCacheTTL   = 5 * time.Minute
	preloadWorkers    = 4
	fetchTimeout      = 15 * time.Second
)

// Options configures a Client. A zero BaseURL means local files only.
type Options struct {
	BaseURL    string
	ContentDir string
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Summary is the index-page view of a project.
type Summary struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Summary string `json:"summary" yaml:"summary"`
}

// Client fetches projects and caches them in memory. Concurrent requests for
// one id share a single fetch.
type Client struct {
	baseURL    string
	contentDir string
	ttl        time.Duration
	http       *http.Client
	log        *logger.Logger
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	project content.Project
	expires time.Time
}

type projectDoc struct {
	ID      string             `json:"id" yaml:"id"`
	Title   string             `json:"title" yaml:"title"`
	Summary string             `json:"summary" yaml:"summary"`
	Blocks  []content.RawBlock `json:"blocks" yaml:"blocks"`
}

func New(opts Options) *Client {
	dir := strings.TrimSpace(opts.ContentDir)
	if dir == "" {
		dir = defaultContentDir
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		contentDir: dir,
		ttl:        ttl,
		http:       hc,
		log:        log.With("component", "cms"),
		now:        time.Now,
		cache:      map[string]cacheEntry{},
	}
}

// Project returns the project with the given id, from cache when fresh.
func (c *Client) Project(ctx context.Context, id string) (content.Project, error) {
	id = sanitizeID(id)
	if id == "" {
		return content.Project{}, ErrNotFound
	}
	if p, ok := c.cached(id); ok {
		return p, nil
	}

	// The shared fetch outlives any single caller; each caller waits on its own ctx.
	ch := c.group.DoChan(id, func() (interface{}, error) {
		if p, ok := c.cached(id); ok {
			return p, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		p, err := c.fetch(fctx, id)
		if err != nil {
			return content.Project{}, err
		}
		c.store(id, p)
		return p, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return content.Project{}, res.Err
		}
		return res.Val.(content.Project), nil
	case <-ctx.Done():
		return content.Project{}, ctx.Err()
	}
}

// Preload warms the cache for ids in the background of a request path.
// Failures are logged and otherwise ignored.
func (c *Client) Preload(ctx context.Context, ids []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadWorkers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := c.Project(gctx, id); err != nil {
				c.log.Debug("preload failed", "project", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Invalidate drops a cached project so the next request refetches it.
func (c *Client) Invalidate(id string) {
	c.mu.Lock()
	delete(c.cache, sanitizeID(id))
	c.mu.Unlock()
}

func (c *Client) cached(id string) (content.Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[id]
	if !ok || c.now().After(e.expires) {
		return content.Project{}, false
	}
	return e.project, true
}

func (c *Client) store(id string, p content.Project) {
	c.mu.Lock()
	c.cache[id] = cacheEntry{project: p, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Client) fetch(ctx context.Context, id string) (content.Project, error) {
	if c.baseURL != "" {
		doc, err := c.fetchRemote(ctx, id)
		switch {
		case err == nil:
			return c.decode(id, doc)
		case errors.Is(err, ErrNotFound):
			return content.Project{}, err
		case ctx.Err() != nil:
			return content.Project{}, fmt.Errorf("cms: fetch project %s: %w", id, ctx.Err())
		default:
			c.log.Warn("remote fetch failed, using local content", "project", id, "error", err)
		}
	}
	doc, err := c.readLocal(id)
	if err != nil {
		return content.Project{}, err
	}
	return c.decode(id, doc)
}

func (c *Client) decode(id string, doc projectDoc) (content.Project, error) {
	blocks, warnings, err := content.Decode(doc.Blocks)
	if err != nil {
		return content.Project{}, fmt.Errorf("cms: project %s: %w", id, err)
	}
	for _, w := range warnings {
		c.log.Warn("content warning", "project", id, "detail", w)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return content.Project{ID: doc.ID, Title: doc.Title, Summary: doc.Summary, Blocks: blocks}, nil
}

func (c *Client) fetchRemote(ctx context.Context, id string) (projectDoc, error) {
	endpoint, err := url.JoinPath(c.baseURL, "projects", id)
	if err != nil {
		return projectDoc{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return projectDoc{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return projectDoc{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return projectDoc{}, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return projectDoc{}, fmt.Errorf("cms: remote status %d", resp.StatusCode)
	}
	var doc projectDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return projectDoc{}, fmt.Errorf("cms: decode remote project: %w", err)
	}
	return doc, nil
}

func (c *Client) projectPath(id string) string {
	return filepath.Join(c.contentDir, "projects", id+".yaml")
}

func (c *Client) readLocal(id string) (projectDoc, error) {
	raw, err := os.ReadFile(c.projectPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return projectDoc{}, ErrNotFound
	}
	if err != nil {
		return projectDoc{}, fmt.Errorf("cms: read project %s: %w", id, err)
	}
	var doc projectDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return projectDoc{}, fmt.Errorf("cms: parse project %s: %w", id, err)
	}
	return doc, nil
}

// List returns the projects available for the index page, sorted by id.
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	if c.baseURL != "" {
		list, err := c.listRemote(ctx)
		if err == nil {
			return list, nil
		}
		c.log.Warn("remote list failed, using local content", "error", err)
	}
	return c.listLocal()
}

func (c *Client) listRemote(ctx context.Context) ([]Summary, error) {
	endpoint, err := url.JoinPath(c.baseURL, "projects")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("cms: remote status %d", resp.StatusCode)
	}
	var list []Summary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("cms: decode remote list: %w", err)
	}
	return list, nil
}

func (c *Client) listLocal() ([]Summary, error) {
	matches, err := filepath.Glob(filepath.Join(c.contentDir, "projects", "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".yaml")
		doc, err := c.readLocal(sanitizeID(id))
		if err != nil {
			c.log.Warn("skipping unreadable project", "path", path, "error", err)
			continue
		}
		if doc.ID == "" {
			doc.ID = id
		}
		out = append(out, Summary{ID: doc.ID, Title: doc.Title, Summary: doc.Summary})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// sanitizeID keeps lowercase letters, digits, '-' and '_'; anything else makes the id invalid.
func sanitizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ""
		}
	}
	return id
}
