package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"ringstat/internal"
	apperrors "ringstat/internal/errors"
	"ringstat/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes sweep progress, stored sweeps, and metrics over HTTP
type Server struct {
	router   *gin.Engine
	hub      *ProgressHub
	gatherer prometheus.Gatherer
	repo     ports.SweepRepository
	http     *http.Server
	logger   *internal.Logger
}

// NewServer wires the routes. gatherer and repo may be nil; their routes are
// then not registered.
func NewServer(hub *ProgressHub, gatherer prometheus.Gatherer, repo ports.SweepRepository) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		hub:      hub,
		gatherer: gatherer,
		repo:     repo,
		logger:   internal.DefaultLogger.For("API"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/events", s.hub.HandleSSE)

	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	if s.repo != nil {
		api.GET("/sweeps", s.handleListSweeps)
		api.GET("/sweeps/:id", s.handleGetSweep)
	}

	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr in the background
func (s *Server) Start(addr string) {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("Serving progress on http://%s", addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed: %v", err)
		}
	}()
}

// Shutdown stops the server and the hub
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	latest := s.hub.Latest()
	sweeps := make([]gin.H, 0, len(latest))
	for id, ev := range latest {
		sweeps = append(sweeps, gin.H{
			"sweep_id": id,
			"kind":     ev.Kind,
			"current":  ev.Current,
			"total":    ev.Total,
			"done":     ev.Total > 0 && ev.Current >= ev.Total,
			"labels":   ev.Describe(),
			"rate":     ev.Rate,
		})
	}
	sort.Slice(sweeps, func(i, j int) bool {
		return sweeps[i]["sweep_id"].(string) < sweeps[j]["sweep_id"].(string)
	})
	c.JSON(http.StatusOK, gin.H{"sweeps": sweeps})
}

func (s *Server) handleListSweeps(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	summaries, err := s.repo.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list sweeps: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweeps": summaries})
}

func (s *Server) handleGetSweep(c *gin.Context) {
	grid, err := s.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.HasCode(err, apperrors.CodeDataNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, grid)
}
