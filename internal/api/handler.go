// Package api implements the stateless compliance-review HTTP surface
// (§4.7) plus health/metrics/status endpoints for the combined run mode.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"compliance-monitor/internal/evaluator"
	"compliance-monitor/internal/monitor"
	"compliance-monitor/internal/resolver"
)

// SoftRuleStore is the subset of pkg/store.DB the review endpoint needs for
// include_soft_rules=true.
type SoftRuleStore interface {
	SoftRules(ctx context.Context, firm, programID string) ([]string, error)
}

// StatusProvider is satisfied by *supervisor.Supervisor; kept as an
// interface so this package does not import supervisor (supervisor already
// imports monitor, and api would otherwise sit above both for no reason).
type StatusProvider interface {
	Status() []monitor.Status
}

// Server wires the review endpoint and its supporting routes around a
// Resolver and an optional soft-rule store and supervisor status view.
type Server struct {
	Router   *gin.Engine
	Resolver *resolver.Resolver
	Store    SoftRuleStore  // may be nil: include_soft_rules then returns none
	Status   StatusProvider // may be nil when running "review" standalone
	Metrics  *monitor.Metrics
}

// NewServer builds a Server with its full middleware stack and routes
// registered.
func NewServer(res *resolver.Resolver, store SoftRuleStore, status StatusProvider, metrics *monitor.Metrics) *Server {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:   r,
		Resolver: res,
		Store:    store,
		Status:   status,
		Metrics:  metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/status", s.status)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.Router.POST("/compliance/review", s.review)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	if s.Status == nil {
		c.JSON(http.StatusOK, gin.H{"accounts": []monitor.Status{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": s.Status.Status()})
}

// review implements POST /compliance/review: resolve (firm, program_id) to
// Rules through the same three-tier chain the monitor loop uses, evaluate
// the caller-supplied account state, and optionally attach soft-rule
// guidance. It is stateless: no anchor, no supervisor account is touched.
func (s *Server) review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, sourceTag, err := s.Resolver.Resolve(c.Request.Context(), req.Firm, req.ProgramID, req.CustomRules)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	snap := req.Account.toSnapshot(req.AccountID, time.Now())
	breaches := evaluator.Evaluate(resolved, snap, req.Account.StartingBalance, 0, false)

	resp := reviewResponse{
		Breaches:  breaches,
		SourceTag: string(sourceTag),
	}

	if req.IncludeSoftRules && s.Store != nil {
		soft, err := s.Store.SoftRules(c.Request.Context(), req.Firm, req.ProgramID)
		if err != nil {
			soft = nil // advisory guidance is best-effort; never fail the review for it
		}
		resp.SoftRules = soft
	}

	c.JSON(http.StatusOK, resp)
}

// Start runs the HTTP server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
