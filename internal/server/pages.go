package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/cms"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/render"
	"github.com/Zachkp/portfolio/internal/unlock"
)

func (s *Server) handleIndex(c *gin.Context) {
	projects, err := s.projects.List(c.Request.Context())
	if err != nil {
		s.log.Error("list projects", "error", err)
		s.errorPage(c, http.StatusBadGateway, "Projects are unavailable right now.")
		return
	}

	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	// best-effort warm-up so opening a case study is served from cache
	go s.projects.Preload(context.Background(), ids)

	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":    "Work",
		"intro":    s.intro,
		"projects": projects,
	})
}

func (s *Server) handleProject(c *gin.Context) {
	p, ok := s.loadProject(c)
	if !ok {
		return
	}
	unlocked := s.unlockStore(c).IsUnlocked(p.ID)
	s.projectPage(c, http.StatusOK, s.view(p, unlocked), false)
}

// handleUnlock renders the page directly instead of redirecting, so an
// unlock applies to this response even if it could not be persisted.
func (s *Server) handleUnlock(c *gin.Context) {
	p, ok := s.loadProject(c)
	if !ok {
		return
	}
	store := s.unlockStore(c)
	if store.IsUnlocked(p.ID) {
		s.projectPage(c, http.StatusOK, s.view(p, true), false)
		return
	}

	challenge, ok := challengeBlock(p)
	if !ok || !challenge.ShowsForm() {
		s.errorPage(c, http.StatusBadRequest, "This project has no password to enter.")
		return
	}

	result := unlock.Attempt(c.PostForm("password"), challenge.Password)
	s.recordAttempt(c, p.ID, result)
	if result == unlock.Unlocked {
		store.MarkUnlocked(c.Request.Context(), p.ID)
		s.log.Info("project unlocked", "project", p.ID)
		s.projectPage(c, http.StatusOK, s.view(p, true), false)
		return
	}
	s.projectPage(c, http.StatusUnauthorized, s.view(p, false), true)
}

func (s *Server) handleRequestAccess(c *gin.Context) {
	p, ok := s.loadProject(c)
	if !ok {
		return
	}
	challenge, ok := challengeBlock(p)
	if !ok || challenge.ContactEmail == "" {
		s.errorPage(c, http.StatusBadRequest, "This project does not take access requests.")
		return
	}

	name := strings.TrimSpace(c.PostForm("fullName"))
	email := strings.TrimSpace(c.PostForm("email"))
	if name == "" || email == "" || s.mailer == nil {
		c.HTML(http.StatusOK, "request-access.html", gin.H{
			"error": "Sorry, there was an error sending your request. Please try again later.",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	subject := fmt.Sprintf("Access request for %s: %s", p.Title, name)
	body := fmt.Sprintf(`
New access request from your portfolio:

Project: %s (%s)
Name: %s
Email: %s

---
Sent from the case study access form
`, p.Title, p.ID, name, email)
	if err := s.mailer.Send(ctx, challenge.ContactEmail, email, subject, body); err != nil {
		s.log.Error("send access request", "project", p.ID, "error", err)
		c.HTML(http.StatusOK, "request-access.html", gin.H{
			"error": "Sorry, there was an error sending your request. Please try again later.",
		})
		return
	}
	c.HTML(http.StatusOK, "request-access.html", gin.H{
		"success": "Thanks! I'll get back to you soon.",
	})
}

// handleSessionReset ends the browsing session: the persisted unlocks of the
// old session are dropped and a new session cookie is issued.
func (s *Server) handleSessionReset(c *gin.Context) {
	old, err := s.sessions.Renew(c)
	if err != nil {
		s.log.Error("renew session", "error", err)
	}
	if old != "" {
		if err := s.storage.Clear(c.Request.Context(), old); err != nil {
			s.log.Warn("clear session storage", "error", err)
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) loadProject(c *gin.Context) (content.Project, bool) {
	p, err := s.projects.Project(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := statusForFetchError(err)
		if status != http.StatusNotFound {
			s.log.Error("load project", "project", c.Param("id"), "error", err)
		}
		msg := "Sorry, this case study couldn't be loaded."
		if errors.Is(err, cms.ErrNotFound) {
			msg = "That case study doesn't exist."
		}
		s.errorPage(c, status, msg)
		return content.Project{}, false
	}
	return p, true
}

func (s *Server) projectPage(c *gin.Context, status int, v pageView, retry bool) {
	body, err := s.renderer.RenderAll(v.Blocks, render.State{
		ProjectID: v.Project.ID,
		Unlocked:  v.Unlocked,
		Retry:     retry,
	})
	if err != nil {
		s.log.Error("render project", "project", v.Project.ID, "error", err)
		s.errorPage(c, http.StatusInternalServerError, "Sorry, this case study couldn't be displayed.")
		return
	}
	c.HTML(status, "project.html", gin.H{
		"title":      v.Project.Title,
		"project":    v.Project,
		"body":       body,
		"unlocked":   v.Unlocked,
		"skipLink":   v.Anchors.Complete(),
		"skipStart":  v.Anchors.Start(),
		"skipEnd":    v.Anchors.End(),
		"skipMargin": v.Anchors.Margin(),
	})
}

func (s *Server) errorPage(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", gin.H{
		"title": http.StatusText(status),
		"error": msg,
	})
}
