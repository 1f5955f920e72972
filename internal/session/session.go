// Package session identifies a browsing session with a signed cookie that
// the browser discards when it closes.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName = "portfolio_session"
	contextKey        = "session_id"
)

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Data is the signed cookie payload.
type Data struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Config controls cookie encoding.
type Config struct {
	CookieName string
	HashKey    []byte
	BlockKey   []byte
	Secure     bool
	Now        func() time.Time
}

// Manager decodes and issues session cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// no Max-Age on the cookie itself; this only bounds how old a payload we accept
	codec.MaxAge(0)
	return &Manager{cfg: cfg, codec: codec, now: now}, nil
}

// Load returns the session carried by r, or a new one when the cookie is
// missing or fails verification. fresh reports whether a cookie must be written.
func (m *Manager) Load(r *http.Request) (data Data, fresh bool) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err == nil {
		var stored Data
		if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err == nil && stored.ID != "" {
			return stored, false
		}
	}
	return m.newData(), true
}

func (m *Manager) newData() Data {
	return Data{ID: uuid.NewString(), CreatedAt: m.now().UTC()}
}

// Save writes data as a browser-session cookie.
func (m *Manager) Save(w http.ResponseWriter, data Data) error {
	encoded, err := m.codec.Encode(m.cfg.CookieName, data)
	if err != nil {
		return fmt.Errorf("session: encode cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware attaches the session id to the gin context, issuing a cookie for new sessions.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, fresh := m.Load(c.Request)
		if fresh {
			if err := m.Save(c.Writer, data); err != nil {
				_ = c.Error(err)
			}
		}
		c.Set(contextKey, data.ID)
		c.Next()
	}
}

// Renew replaces the current session with a new one and returns the old id.
func (m *Manager) Renew(c *gin.Context) (string, error) {
	old := ID(c)
	data := m.newData()
	if err := m.Save(c.Writer, data); err != nil {
		return old, err
	}
	c.Set(contextKey, data.ID)
	return old, nil
}

// ID returns the session id attached by Middleware.
func ID(c *gin.Context) string {
	return c.GetString(contextKey)
}
