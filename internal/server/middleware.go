package server

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/logger"
)

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"errors", c.Errors.String(),
		)
	}
}

var untrackedPrefixes = []string{"/static/", "/images/", "/admin/", "/api/", "/favicon", "/privacy", "/healthz"}

// visitorTracking records page views with hashed IPs. Requests carrying
// DNT: 1 are never recorded.
func visitorTracking(store *analytics.Store, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range untrackedPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		if c.GetHeader("DNT") == "1" || c.Request.Method != "GET" {
			c.Next()
			return
		}

		ip, ua := c.ClientIP(), c.GetHeader("User-Agent")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.TrackVisit(ctx, ip, ua, path); err != nil {
				log.Warn("record visitor", "error", err)
			}
		}()
		c.Next()
	}
}
