// admin.go - privacy-conscious admin area over the analytics store
package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/logger"
)

const adminCookie = "admin_token"

type adminConfig struct {
	Username string
	Password string
	Secure   bool
}

type admin struct {
	cfg   adminConfig
	token string
	stats *analytics.Store
	log   *logger.Logger
}

// newAdmin generates the per-process admin token. Logging in hands it out as a cookie.
func newAdmin(cfg adminConfig, stats *analytics.Store, log *logger.Logger) (*admin, error) {
	token, err := generateAdminToken()
	if err != nil {
		return nil, err
	}
	log.Info("admin access available at /admin/login")
	return &admin{cfg: cfg, token: token, stats: stats, log: log.With("component", "admin")}, nil
}

func generateAdminToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate admin token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (a *admin) credentialsMatch(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) == 1
	return userOK && passOK
}

func (a *admin) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func setupAdminRoutes(r *gin.Engine, a *admin) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{"title": "Privacy Policy"})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		if !a.credentialsMatch(c.PostForm("username"), c.PostForm("password")) {
			a.log.Warn("failed admin login", "visitor", a.stats.Hash(c.ClientIP()))
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"title": "Admin Login",
				"error": "Invalid credentials",
			})
			return
		}
		c.SetCookie(adminCookie, a.token, 3600*24, "/admin", "", a.cfg.Secure, true)
		a.log.Info("admin login", "visitor", a.stats.Hash(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", a.cfg.Secure, true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	group := r.Group("/admin")
	group.Use(a.authMiddleware())

	group.GET("/dashboard", func(c *gin.Context) {
		stats, err := a.stats.Stats(c.Request.Context())
		if err != nil {
			a.log.Error("load admin stats", "error", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load statistics"})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{"title": "Dashboard", "stats": stats})
	})

	group.GET("/api/stats", func(c *gin.Context) {
		stats, err := a.stats.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	group.GET("/visitors", func(c *gin.Context) {
		visitors, err := a.stats.RecentVisitors(c.Request.Context(), 200)
		if err != nil {
			a.log.Error("load visitors", "error", err)
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load visitors"})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{"title": "Visitors", "visitors": visitors})
	})

	group.POST("/privacy/delete-visitor-data", func(c *gin.Context) {
		n, err := a.stats.Cleanup(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Privacy cleanup complete", "removed": n})
	})

	group.GET("/export/stats", func(c *gin.Context) {
		stats, err := a.stats.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=portfolio-stats.json")
		a.log.Info("stats exported", "visitor", a.stats.Hash(c.ClientIP()))
		c.JSON(http.StatusOK, stats)
	})
}
