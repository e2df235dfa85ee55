// Package api exposes the bot's read-only status surface over HTTP plus
// a WebSocket event stream. It never places or modifies trades; the only
// write is the operator circuit-breaker reset.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"oanda-trading-bot/config"
	"oanda-trading-bot/internal/circuit"
	"oanda-trading-bot/internal/database"
	"oanda-trading-bot/internal/events"
	"oanda-trading-bot/internal/ledger"
	"oanda-trading-bot/internal/logging"
	"oanda-trading-bot/internal/scanner"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// BotAPI is the slice of the bot the HTTP layer reads from.
type BotAPI interface {
	Status() map[string]interface{}
	OpenTrades() []ledger.Entry
	LastScan() *scanner.ScanResult
	CircuitStatus() circuit.Status
	ResetCircuit()
}

// Server hosts the status API and the WebSocket hub.
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	bot        BotAPI
	repo       *database.Repository // nil when persistence is disabled
	hub        *WSHub
	logger     *logging.Logger
}

// NewServer wires routes and the event-stream hub. repo and bus may be nil.
func NewServer(cfg config.ServerConfig, bot BotAPI, repo *database.Repository, bus *events.EventBus) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	origins := strings.TrimSpace(cfg.AllowedOrigins)
	if origins == "" || origins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		cfg:    cfg,
		router: router,
		bot:    bot,
		repo:   repo,
		hub:    NewWSHub(),
		logger: logging.WithComponent("api"),
	}

	go s.hub.Run()
	if bus != nil {
		bus.SubscribeAll(s.hub.BroadcastEvent)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/trades/open", s.handleOpenTrades)
		api.GET("/scanner/last", s.handleLastScan)
		api.GET("/circuit", s.handleCircuit)
		api.POST("/circuit/reset", s.handleCircuitReset)
		api.GET("/decisions", s.handleDecisions)
	}

	s.router.GET("/ws", s.hub.ServeWS)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.Status())
}

func (s *Server) handleOpenTrades(c *gin.Context) {
	trades := s.bot.OpenTrades()
	c.JSON(http.StatusOK, gin.H{"count": len(trades), "trades": trades})
}

func (s *Server) handleLastScan(c *gin.Context) {
	result := s.bot.LastScan()
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no scan has completed yet"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCircuit(c *gin.Context) {
	c.JSON(http.StatusOK, s.bot.CircuitStatus())
}

func (s *Server) handleCircuitReset(c *gin.Context) {
	s.bot.ResetCircuit()
	s.logger.Warn("Circuit breaker reset via API")
	c.JSON(http.StatusOK, s.bot.CircuitStatus())
}

func (s *Server) handleDecisions(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is disabled"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	decisions, err := s.repo.RecentGateDecisions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(decisions), "decisions": decisions})
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.timeout(s.cfg.ReadTimeout),
		WriteTimeout: s.timeout(s.cfg.WriteTimeout),
	}
	s.logger.Info("API listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown window.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout(s.cfg.ShutdownTimeout))
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 15
	}
	return time.Duration(seconds) * time.Second
}
