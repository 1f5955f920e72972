// Package server wires the case-study pipeline into gin routes.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/anchor"
	"github.com/Zachkp/portfolio/internal/cms"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/gate"
	"github.com/Zachkp/portfolio/internal/logger"
	"github.com/Zachkp/portfolio/internal/render"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/unlock"
)

//go:embed templates/*.html
var templateFS embed.FS

// Mailer delivers access requests to a project's contact address.
type Mailer interface {
	Send(ctx context.Context, to, replyTo, subject, body string) error
}

// ProjectSource is the content collaborator the server reads projects from.
type ProjectSource interface {
	Project(ctx context.Context, id string) (content.Project, error)
	List(ctx context.Context) ([]cms.Summary, error)
	Preload(ctx context.Context, ids []string)
}

type Options struct {
	Logger         *logger.Logger
	Projects       ProjectSource
	Storage        unlock.Storage
	Sessions       *session.Manager
	Renderer       *render.Renderer
	Analytics      *analytics.Store
	Mailer         Mailer
	CORSOrigins    []string
	SkipLinkMargin float64
	Intro          string
}

type Server struct {
	log       *logger.Logger
	projects  ProjectSource
	storage   unlock.Storage
	sessions  *session.Manager
	renderer  *render.Renderer
	analytics *analytics.Store
	mailer    Mailer
	margin    float64
	intro     string
	engine    *gin.Engine
}

func New(opts Options) (*Server, error) {
	if opts.Projects == nil || opts.Storage == nil || opts.Sessions == nil || opts.Renderer == nil {
		return nil, errors.New("server: projects, storage, sessions and renderer are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		log:       log,
		projects:  opts.Projects,
		storage:   opts.Storage,
		sessions:  opts.Sessions,
		renderer:  opts.Renderer,
		analytics: opts.Analytics,
		mailer:    opts.Mailer,
		margin:    opts.SkipLinkMargin,
		intro:     opts.Intro,
	}

	pages, err := template.New("pages").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(pages)
	r.Use(gin.Recovery(), requestLogger(log), s.sessions.Middleware())
	if s.analytics != nil {
		r.Use(visitorTracking(s.analytics, log))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/", s.handleIndex)
	r.GET("/projects/:id", s.handleProject)
	r.POST("/projects/:id/unlock", s.handleUnlock)
	r.POST("/projects/:id/request-access", s.handleRequestAccess)
	r.POST("/session/reset", s.handleSessionReset)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	api := r.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	{
		api.GET("/projects", s.apiList)
		api.GET("/projects/:id", s.apiProject)
		api.GET("/projects/:id/raw", s.apiRawProject)
		api.POST("/projects/:id/unlock", s.apiUnlock)
	}

	s.engine = r
	return s, nil
}

// Engine exposes the router so callers can mount more routes.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// pageView is everything a case-study page needs after gating.
type pageView struct {
	Project  content.Project
	Unlocked bool
	Blocks   []content.Block
	Anchors  *anchor.Registry
}

// view runs the pipeline for one project and unlock state.
func (s *Server) view(p content.Project, unlocked bool) pageView {
	blocks := gate.Sequence(p.Blocks, unlocked)
	reg := anchor.NewRegistry(s.margin)
	if err := reg.Scan(blocks); err != nil {
		s.log.Warn("skip link anchors", "project", p.ID, "error", err)
	}
	return pageView{Project: p, Unlocked: unlocked, Blocks: blocks, Anchors: reg}
}

// challengeBlock is the protected block whose password unlocks the project:
// the first protected block, the same one the gate truncates at.
func challengeBlock(p content.Project) (content.Protected, bool) {
	i := gate.Boundary(p.Blocks)
	if i < 0 {
		return content.Protected{}, false
	}
	b, ok := p.Blocks[i].(content.Protected)
	return b, ok
}

func (s *Server) unlockStore(c *gin.Context) *unlock.Store {
	return unlock.Open(c.Request.Context(), s.storage, session.ID(c), s.log)
}

func (s *Server) recordAttempt(c *gin.Context, projectID string, result unlock.Result) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.RecordAttempt(c.Request.Context(), projectID, session.ID(c), result.String()); err != nil {
		s.log.Warn("record attempt", "project", projectID, "error", err)
	}
}

func statusForFetchError(err error) int {
	if errors.Is(err, cms.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
