// Package api is the HTTP surface of the control plane. Authentication is an
// external concern: the fronting layer verifies the caller and forwards the
// identity in the X-User-ID header.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dropdeploy/dropdeploy/internal/deploy"
	"github.com/dropdeploy/dropdeploy/internal/metrics"
	"github.com/dropdeploy/dropdeploy/internal/store"
	"github.com/dropdeploy/dropdeploy/internal/terminal"
)

// userIDHeader carries the authenticated caller identity set by the external
// auth layer.
const userIDHeader = "X-User-ID"

// Handlers contains all API handlers and their dependencies
type Handlers struct {
	store     *store.Store
	orch      *deploy.Orchestrator
	gateway   *terminal.Gateway
	collector *metrics.Collector
	prefix    string
}

// NewHandlers creates the handler set
func NewHandlers(st *store.Store, orch *deploy.Orchestrator, gateway *terminal.Gateway, collector *metrics.Collector, prefix string) *Handlers {
	return &Handlers{store: st, orch: orch, gateway: gateway, collector: collector, prefix: prefix}
}

// RequireUser rejects requests without a forwarded caller identity
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(userIDHeader) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetHeader(userIDHeader)
}

// Health responds to liveness probes
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Metrics serves the Prometheus registry
func (h *Handlers) Metrics(c *gin.Context) {
	h.collector.UpdateUptime()
	h.collector.Handler().ServeHTTP(c.Writer, c.Request)
}
