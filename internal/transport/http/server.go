package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tradepilot/internal/ai"
	"tradepilot/internal/logger"
	"tradepilot/internal/ratelimit"
	"tradepilot/internal/store/gormstore"

	"github.com/gin-gonic/gin"
)

// Server 只读观测面 + 手动切换供应商。业务决策不走 HTTP。
type Server struct {
	addr    string
	store   *gormstore.Store
	manager *ai.Manager
	buckets *ratelimit.Registry
}

func NewServer(addr string, store *gormstore.Store, manager *ai.Manager, buckets *ratelimit.Registry) *Server {
	return &Server{addr: addr, store: store, manager: manager, buckets: buckets}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/providers", s.handleProviders)
	api.POST("/providers/switch", s.handleSwitch)
	api.GET("/positions", s.handlePositions)
	api.GET("/signals", s.handleSignals)
	api.GET("/ratelimits", s.handleRateLimits)
	return router
}

// Start 启动 HTTP 服务并阻塞到 ctx 取消。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router()}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http: listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleProviders(c *gin.Context) {
	if s.manager == nil {
		c.JSON(http.StatusOK, gin.H{"active": "", "providers": []ai.Health{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":    s.manager.ActiveID(),
		"providers": s.manager.Stats(),
	})
}

func (s *Server) handleSwitch(c *gin.Context) {
	var req struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai manager not configured"})
		return
	}
	if err := s.manager.SwitchProvider(req.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": s.manager.ActiveID()})
}

func (s *Server) handlePositions(c *gin.Context) {
	positions, err := s.store.ListPositions(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []gormstore.PositionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleSignals(c *gin.Context) {
	signals, err := s.store.RecentSignals(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if signals == nil {
		signals = []gormstore.SignalRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

func (s *Server) handleRateLimits(c *gin.Context) {
	if s.buckets == nil {
		c.JSON(http.StatusOK, gin.H{"buckets": map[string]ratelimit.Status{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": s.buckets.Snapshot()})
}
