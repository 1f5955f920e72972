package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/unlock"
)

type skipLinkJSON struct {
	Start  string  `json:"start"`
	End    string  `json:"end"`
	Margin float64 `json:"margin"`
}

type projectJSON struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Summary  string             `json:"summary,omitempty"`
	Unlocked bool               `json:"unlocked"`
	Blocks   []content.Envelope `json:"blocks"`
	SkipLink *skipLinkJSON      `json:"skipLink"`
}

func (s *Server) apiList(c *gin.Context) {
	projects, err := s.projects.List(c.Request.Context())
	if err != nil {
		s.log.Error("list projects", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "projects unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) apiLoad(c *gin.Context) (content.Project, bool) {
	p, err := s.projects.Project(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := statusForFetchError(err)
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return content.Project{}, false
	}
	return p, true
}

func (s *Server) projectJSON(v pageView) projectJSON {
	out := projectJSON{
		ID:       v.Project.ID,
		Title:    v.Project.Title,
		Summary:  v.Project.Summary,
		Unlocked: v.Unlocked,
		Blocks:   content.Wrap(v.Blocks),
	}
	if v.Anchors.Complete() {
		out.SkipLink = &skipLinkJSON{Start: v.Anchors.Start(), End: v.Anchors.End(), Margin: v.Anchors.Margin()}
	}
	return out
}

// apiProject returns the gated sequence for the caller's session.
func (s *Server) apiProject(c *gin.Context) {
	p, ok := s.apiLoad(c)
	if !ok {
		return
	}
	unlocked := s.unlockStore(c).IsUnlocked(p.ID)
	c.JSON(http.StatusOK, s.projectJSON(s.view(p, unlocked)))
}

// apiRawProject returns the project exactly as authored, including protected
// block passwords. Script-driven clients gate and check passwords locally.
func (s *Server) apiRawProject(c *gin.Context) {
	p, ok := s.apiLoad(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      p.ID,
		"title":   p.Title,
		"summary": p.Summary,
		"blocks":  content.Wrap(p.Blocks),
	})
}

type unlockRequest struct {
	Password string `json:"password"`
}

func (s *Server) apiUnlock(c *gin.Context) {
	p, ok := s.apiLoad(c)
	if !ok {
		return
	}
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	store := s.unlockStore(c)
	if store.IsUnlocked(p.ID) {
		c.JSON(http.StatusOK, gin.H{"result": unlock.Unlocked.String(), "unlocked": true})
		return
	}
	challenge, ok := challengeBlock(p)
	if !ok || !challenge.ShowsForm() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project has no password"})
		return
	}

	result := unlock.Attempt(req.Password, challenge.Password)
	s.recordAttempt(c, p.ID, result)
	if result == unlock.Unlocked {
		store.MarkUnlocked(c.Request.Context(), p.ID)
		c.JSON(http.StatusOK, gin.H{"result": result.String(), "unlocked": true})
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{"result": result.String(), "unlocked": false})
}
