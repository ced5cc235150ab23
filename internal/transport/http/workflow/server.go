package workflowhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"backdesk/internal/logger"
	"backdesk/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var log = logger.Named("http")

const (
	headerSessionID = "X-Session-ID"
	headerRequestID = "X-Request-ID"
	// currentSession in the :sid position means "use the cookie or header".
	currentSession = "current"
)

// Server exposes the workflow manager over HTTP.
type Server struct {
	addr       string
	cookieName string
	cookieTTL  time.Duration
	mgr        *workflow.Manager
	router     *gin.Engine
}

type Config struct {
	Addr       string
	CookieName string
	CookieTTL  time.Duration
	Manager    *workflow.Manager
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, errors.New("workflow manager is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "backdesk_session"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger())

	s := &Server{
		addr:       cfg.Addr,
		cookieName: cfg.CookieName,
		cookieTTL:  cfg.CookieTTL,
		mgr:        cfg.Manager,
		router:     router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	api.GET("/indicators", s.handleIndicators)
	api.POST("/sessions", s.handleCreateSession)

	sess := api.Group("/sessions/:sid", s.resolveSession)
	sess.POST("/upload", s.handleUpload)
	sess.POST("/fetch", s.handleFetch)
	sess.GET("/dataset", s.handleDataset)
	sess.GET("/indicators", s.handleSessionIndicators)
	sess.GET("/selections", s.handleSelections)
	sess.POST("/indicators/:id/toggle", s.handleToggle)
	sess.PUT("/indicators/:id/params/:name", s.handleSetParam)
	sess.POST("/backtest", s.handleBacktest)
	sess.POST("/download", s.handleDownload)
	sess.GET("/charts/price", s.handlePriceChart)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		log.Debugf("%s %s status=%d req=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.GetString(headerRequestID), time.Since(start))
	}
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
