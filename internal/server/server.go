package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/activity"
	"github.com/user/vidcatalog/internal/auth"
	"github.com/user/vidcatalog/internal/catalog"
	"github.com/user/vidcatalog/internal/staging"
)

// Metrics for Prometheus
var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidcatalog_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidcatalog_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidcatalog_uploads_total",
		Help: "Total number of admin uploads",
	}, []string{"kind", "status"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidcatalog_errors_total",
		Help: "Total number of errors",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(uploadsTotal)
	prometheus.MustRegister(errorsTotal)
}

// PublicPageSize is the page size of the public listings
const PublicPageSize = 12

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer dispatches to
type Deps struct {
	Catalog  *catalog.Service
	Recorder *activity.Recorder
	Auth     *auth.Authenticator
	Limiter  *auth.LoginLimiter
	Stager   *staging.Stager
	Health   Pinger
	// SecureCookie marks the session cookie Secure, for deployments behind TLS
	SecureCookie bool
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Server serves the public catalog, the admin panel, health and metrics
type Server struct {
	deps      Deps
	engine    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		engine:    gin.New(),
		startTime: time.Now(),
	}
	s.engine.MaxMultipartMemory = 32 << 20

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.engine
	r.Use(gin.Recovery(), requestID(), requestLogger(), metrics())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", s.handleHome)
	r.GET("/videos", s.handleVideos)
	r.GET("/video/:id", s.handleVideo)
	r.GET("/model/:modelName", s.handleModel)
	r.GET("/tag/:tag", s.handleTag)

	api := r.Group("/api")
	api.GET("/search", s.handleSearch)
	api.GET("/models", s.handleModels)
	api.GET("/tags", s.handleTags)

	login := r.Group("/admin")
	login.GET("/login", s.handleLoginPage)
	login.POST("/login", s.handleLogin)
	login.GET("/logout", s.handleLogout)

	admin := r.Group("/admin", auth.RequireAdmin(s.deps.Auth))
	admin.GET("/dashboard", s.handleDashboard)
	admin.GET("/videos", s.handleAdminVideos)
	admin.GET("/videos/add", s.handleAddPage)
	admin.POST("/videos/add", s.handleAddVideo)
	admin.GET("/videos/mass-upload", s.handleMassUploadPage)
	admin.POST("/videos/mass-upload", s.handleMassUpload)
	admin.GET("/videos/edit/:id", s.handleEditPage)
	admin.POST("/videos/edit/:id", s.handleEditVideo)
	admin.POST("/videos/publish/:id", s.handlePublish)
	admin.POST("/videos/delete/:id", s.handleDeleteVideo)
	admin.GET("/api/upload-status/:id", s.handleUploadStatus)
	admin.GET("/statistics", s.handleStatistics)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	// No read or write deadline: mass uploads stream large bodies and wait on the provider
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	dbStatus := "healthy"
	if err := s.deps.Health.Ping(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		dbStatus = "unhealthy"
	}

	response := HealthResponse{
		Status:   "healthy",
		Database: dbStatus,
		Uptime:   s.GetUptime().Round(time.Second).String(),
	}

	code := http.StatusOK
	if dbStatus != "healthy" {
		response.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

// RecordUpload records the outcome of an admin upload
func RecordUpload(kind, status string) {
	uploadsTotal.WithLabelValues(kind, status).Inc()
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}
