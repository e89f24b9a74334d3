package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"prism/internal/logger"
	"prism/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Server hosts the PRISM JSON API plus the operational endpoints.
type Server struct {
	addr   string
	router *gin.Engine
}

// RateLimit throttles the credential routes per client IP.
type RateLimit struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig lists the server's collaborators.
type ServerConfig struct {
	Addr      string
	APIPrefix string
	Accounts  AccountService
	Decisions DecisionService
	Payments  PaymentService
	Research  ResearchService
	Health    ReadinessChecker
	Metrics   *metrics.Metrics
	RateLimit RateLimit
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Accounts == nil || cfg.Decisions == nil || cfg.Payments == nil || cfg.Research == nil {
		return nil, errors.New("api server requires account, decision, payment and research services")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(cfg.APIPrefix), "/")
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "PRISM API operational", "status": "healthy"})
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		if cfg.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		report, ok := cfg.Health.Ready(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})

	var limiter *rateLimiter
	if cfg.RateLimit.Enabled {
		limiter = newRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	api := NewRouter(cfg.Accounts, cfg.Decisions, cfg.Payments, cfg.Research, limiter)
	api.Register(router.Group(prefix))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger logs every request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled, then shuts down within 5s.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("PRISM API listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
