package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/cms"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/database"
	"github.com/Zachkp/portfolio/internal/logger"
	"github.com/Zachkp/portfolio/internal/render"
	"github.com/Zachkp/portfolio/internal/server"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/unlock"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "portfolio",
		Short:         "Portfolio site with password-gated case studies",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newPreviewCommand())
	return rootCmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, warnings, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	for _, w := range warnings {
		log.Warn(w)
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := analytics.New(ctx, db)
	if err != nil {
		return err
	}
	storage, closeStorage, err := openStorage(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStorage()

	sessions, err := session.NewManager(session.Config{
		HashKey:  cfg.SessionHashKey,
		BlockKey: cfg.SessionBlockKey,
		Secure:   cfg.Production(),
	})
	if err != nil {
		return err
	}
	renderer, err := render.New()
	if err != nil {
		return err
	}
	projects := cms.New(cms.Options{
		BaseURL:    cfg.CMSBaseURL,
		ContentDir: cfg.ContentDir,
		CacheTTL:   cfg.ContentCacheTTL,
		Logger:     log,
	})

	srv, err := server.New(server.Options{
		Logger:         log,
		Projects:       projects,
		Storage:        storage,
		Sessions:       sessions,
		Renderer:       renderer,
		Analytics:      stats,
		Mailer:         smtpMailer{host: cfg.SMTPHost, port: cfg.SMTPPort, user: cfg.SMTPUser, pass: cfg.SMTPPass},
		CORSOrigins:    cfg.CORSOrigins,
		SkipLinkMargin: cfg.SkipLinkMargin,
		Intro:          AboutMe,
	})
	if err != nil {
		return err
	}

	r := srv.Engine()
	r.Static("/images", "./images")
	r.Static("/static", "./static")

	adm, err := newAdmin(adminConfig{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Secure:   cfg.Production(),
	}, stats, log)
	if err != nil {
		return err
	}
	setupAdminRoutes(r, adm)

	go runJanitor(ctx, storage, stats, cfg.SessionIdleTimeout, log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	log.Info("listening", "addr", httpServer.Addr, "unlock_backend", cfg.UnlockBackend)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStorage(ctx context.Context, cfg config.Config, db *sql.DB) (unlock.Storage, func(), error) {
	noop := func() {}
	switch cfg.UnlockBackend {
	case config.BackendMemory:
		return unlock.NewMemoryStorage(), noop, nil
	case config.BackendRedis:
		rs, err := unlock.NewRedisStorage(ctx, cfg.RedisAddr, cfg.SessionIdleTimeout)
		if err != nil {
			return nil, noop, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		ss, err := unlock.NewSQLiteStorage(ctx, db)
		if err != nil {
			return nil, noop, err
		}
		return ss, noop, nil
	}
}

type expirer interface {
	Expire(ctx context.Context, idle time.Duration) (int64, error)
}

// runJanitor drops idle session values and visitor rows past retention, once
// at start and then hourly.
func runJanitor(ctx context.Context, storage unlock.Storage, stats *analytics.Store, idle time.Duration, log *logger.Logger) {
	sweep := func() {
		if e, ok := storage.(expirer); ok {
			n, err := e.Expire(ctx, idle)
			if err != nil {
				log.Warn("expire sessions", "error", err)
			} else if n > 0 {
				log.Info("expired idle sessions", "rows", n)
			}
		}
		n, err := stats.Cleanup(ctx)
		if err != nil {
			log.Warn("visitor cleanup", "error", err)
		} else if n > 0 {
			log.Info("privacy cleanup: removed old visitor records", "rows", n)
		}
	}

	sweep()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

type smtpMailer struct {
	host, port, user, pass string
}

func (m smtpMailer) Send(ctx context.Context, to, replyTo, subject, body string) error {
	if m.user == "" || m.pass == "" {
		return fmt.Errorf("SMTP credentials not configured")
	}
	msg := composeMessage(m.user, to, replyTo, subject, body)
	auth := smtp.PlainAuth("", m.user, m.pass, m.host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(net.JoinHostPort(m.host, m.port), auth, m.user, []string{to}, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// composeMessage builds the raw message. Header values are kept to one line.
func composeMessage(from, to, replyTo, subject, body string) []byte {
	header := strings.NewReplacer("\r", "", "\n", "")
	return []byte("To: " + header.Replace(to) + "\r\n" +
		"Subject: " + header.Replace(subject) + "\r\n" +
		"From: " + header.Replace(from) + "\r\n" +
		"Reply-To: " + header.Replace(replyTo) + "\r\n" +
		"\r\n" +
		body + "\r\n")
}
