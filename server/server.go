// Package server exposes the inbound HTTP surface: the chat session REST
// routes, login, the internal job-progress ingestion endpoint and the SSE
// stream that forwards job progress to waiting clients. Handlers are thin;
// all session semantics live in the orchestrator.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/guard"
	"github.com/souschef-ai/souschef/logging"
	"github.com/souschef-ai/souschef/orchestrator"
	"github.com/souschef-ai/souschef/relay"
)

// PrincipalHeader carries the authenticated caller's email-equivalent handle.
// Authentication itself happens upstream; the server only requires the
// handle to be present and lets the guard decide whether it is known.
const PrincipalHeader = "X-User-Email"

const principalKey = "souschef.principal"

// DefaultHeartbeat is the SSE keep-alive interval.
const DefaultHeartbeat = 30 * time.Second

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives request diagnostics.
	Logger logging.Logger

	// AllowedOrigins configures CORS. An empty list allows all origins.
	AllowedOrigins []string

	// Registry receives the server metrics and backs the /metrics endpoint.
	Registry *prometheus.Registry

	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration
}

// Server is the HTTP facade over the orchestrator and the progress relay.
type Server struct {
	engine    *gin.Engine
	orch      *orchestrator.Orchestrator
	guard     *guard.Guard
	relay     *relay.Relay
	logger    logging.Logger
	metrics   *Metrics
	heartbeat time.Duration
}

// New constructs the server and mounts all routes.
func New(orch *orchestrator.Orchestrator, g *guard.Guard, rly *relay.Relay, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		Registry:  prometheus.NewRegistry(),
		Heartbeat: DefaultHeartbeat,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	metrics, err := NewMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		orch:      orch,
		guard:     g,
		relay:     rly,
		logger:    opts.Logger,
		metrics:   metrics,
		heartbeat: opts.Heartbeat,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.observe())

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 || (len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", PrincipalHeader}
	engine.Use(cors.New(corsConfig))

	api := engine.Group("/api")
	api.POST("/auth/login", s.handleLogin)

	chat := api.Group("/chat", s.requirePrincipal())
	chat.POST("/start", s.handleStart)
	chat.GET("/sessions", s.handleListSessions)
	chat.POST("/message", s.handleMessage)
	chat.GET("/session/:sessionId", s.handleStatus)
	chat.POST("/session/:sessionId/complete-step/:stepNumber", s.handleCompleteStep)
	chat.GET("/session/:sessionId/history", s.handleHistory)
	chat.DELETE("/session/:sessionId", s.handleEnd)

	api.POST("/internal/jobs/:jobId/progress", s.handleJobProgress)
	api.GET("/jobs/:jobId/events", s.handleJobEvents)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))

	s.engine = engine
	return s, nil
}

// Handler returns the mounted http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// observe records latency and outcome of every request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// requirePrincipal rejects requests without a caller handle. Whether the
// handle maps to a known owner is the guard's call, made per operation.
func (s *Server) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := c.GetHeader(PrincipalHeader)
		if principal == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + PrincipalHeader + " header",
				"code":  "authentication",
			})
			return
		}
		c.Set(principalKey, principal)
	}
}

func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

// statusFor maps the error taxonomy to HTTP statuses. Agent-side rejection
// and protocol violations share 502; the body's code field keeps them apart.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, core.ErrInvalidStep):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidRecipe):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAgentUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrAgentRejected), errors.Is(err, core.ErrAgentProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// codeFor returns a stable machine-readable identifier for each taxonomy
// entry, so clients never have to parse error strings.
func codeFor(err error) string {
	switch {
	case errors.Is(err, core.ErrAuthentication):
		return "authentication"
	case errors.Is(err, core.ErrForbidden):
		return "forbidden"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case errors.Is(err, core.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, core.ErrInvalidStep):
		return "invalid_step"
	case errors.Is(err, core.ErrInvalidRecipe):
		return "invalid_recipe"
	case errors.Is(err, core.ErrAgentUnavailable):
		return "agent_unavailable"
	case errors.Is(err, core.ErrAgentRejected):
		return "agent_rejected"
	case errors.Is(err, core.ErrAgentProtocol):
		return "agent_protocol"
	default:
		return "internal"
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed method=%s path=%s err=%v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": codeFor(err)})
}
