// Package httpapi exposes the pipeline over a JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stratlab/internal/analysis/pattern"
	"stratlab/internal/analysis/validate"
	"stratlab/internal/backtest"
	"stratlab/internal/market"
	"stratlab/internal/store/results"
)

// Server serves the data, analysis and backtest endpoints.
type Server struct {
	addr       string
	aggregator *market.Aggregator
	detector   *pattern.Detector
	svc        *backtest.Service
	results    *results.Store
	router     *gin.Engine
}

// Config lists the server's dependencies. Results may be nil when run
// persistence is disabled.
type Config struct {
	Addr       string
	Aggregator *market.Aggregator
	Detector   *pattern.Detector
	Service    *backtest.Service
	Results    *results.Store
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if cfg.Service == nil {
		return nil, errors.New("backtest service is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	detector := cfg.Detector
	if detector == nil {
		detector = pattern.NewDetector()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:       cfg.Addr,
		aggregator: cfg.Aggregator,
		detector:   detector,
		svc:        cfg.Service,
		results:    cfg.Results,
		router:     router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	data := api.Group("/data")
	data.POST("/fetch", s.handleFetch)
	data.GET("/probe", s.handleProbe)
	data.GET("/sources", s.handleSources)

	analysis := api.Group("/analysis")
	analysis.POST("/patterns", s.handlePatterns)

	bt := api.Group("/backtest")
	bt.POST("/runs", s.handleRunSubmit)
	bt.GET("/runs", s.handleRunList)
	bt.GET("/runs/:id", s.handleRunDetail)
	bt.GET("/runs/:id/trades", s.handleRunTrades)
	bt.GET("/jobs", s.handleJobs)
	bt.GET("/jobs/:id", s.handleJobStatus)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type fetchRequest struct {
	Symbol    string   `json:"symbol" binding:"required"`
	Timeframe string   `json:"timeframe" binding:"required"`
	StartTS   int64    `json:"start_ts" binding:"required"`
	EndTS     int64    `json:"end_ts" binding:"required"`
	Sources   []string `json:"sources"`
}

func (s *Server) handleFetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	candles, err := s.aggregator.FetchMerged(c.Request.Context(),
		req.Symbol, req.Timeframe, req.StartTS, req.EndTS, req.Sources)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, market.ErrUnsupportedSource) || errors.Is(err, market.ErrUnsupportedTimeframe) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	report := validate.Validate(candles)
	c.JSON(http.StatusOK, gin.H{"candles": candles, "validation": report})
}

func (s *Server) handleProbe(c *gin.Context) {
	symbol := c.Query("symbol")
	source := c.Query("source")
	if symbol == "" || source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and source are required"})
		return
	}
	info, err := s.aggregator.Probe(c.Request.Context(), source, symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "source": source, "info": info})
}

func (s *Server) handleSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.aggregator.Sources()})
}

func (s *Server) handlePatterns(c *gin.Context) {
	var req struct {
		Candles []market.Candle `json:"candles" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	matches := s.detector.FindPatterns(req.Candles)
	c.JSON(http.StatusOK, gin.H{"patterns": matches})
}

func (s *Server) handleRunSubmit(c *gin.Context) {
	var params backtest.RunParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.svc.SubmitRun(params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *Server) handleRunList(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence is disabled"})
		return
	}
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, results.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run persistence is disabled"})
		return
	}
	trades, err := s.results.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.svc.JobsSnapshot()})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	job, ok := s.svc.JobSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
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
