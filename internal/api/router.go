package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prasenjit/go-assertive/internal/engine"
	"github.com/prasenjit/go-assertive/internal/history"
	"github.com/prasenjit/go-assertive/internal/stats"
	"github.com/prasenjit/go-assertive/internal/storage"
)

// Router handles HTTP routing. Admin endpoints live under the prefix; every
// other request is served by the mock handler.
type Router struct {
	engine  *gin.Engine
	handler *Handler
	history *history.Log
	mock    http.Handler
	prefix  string
}

// NewRouter creates a new router
func NewRouter(store storage.Store, h *history.Log, statsCollector *stats.Collector, dispatcher *engine.Dispatcher, mock http.Handler, prefix string) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:  gin.New(),
		history: h,
		mock:    mock,
		prefix:  prefix,
	}

	r.handler = NewHandler(store, h, statsCollector, dispatcher, prefix)

	// Setup middleware
	r.engine.Use(gin.Recovery())
	r.engine.Use(gin.Logger())

	r.setupRoutes()

	return r
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	admin := r.engine.Group(r.prefix)
	admin.Use(corsMiddleware())
	{
		admin.GET("", r.handler.Welcome)

		// Expectations
		admin.GET("/expectations", r.handler.ListExpectations)
		admin.POST("/expectations", r.handler.CreateExpectations)
		admin.DELETE("/expectations", r.handler.ClearExpectations)
		admin.GET("/expectations/:id", r.handler.GetExpectation)
		admin.DELETE("/expectations/:id", r.handler.DeleteExpectation)
		admin.POST("/stubs", r.handler.CreateExpectations)

		// Verification
		admin.POST("/verify", r.handler.Verify)
		admin.POST("/assert", r.handler.Assert)

		// Request history
		admin.GET("/requests", r.handler.ListRequests)
		admin.DELETE("/requests", r.handler.ClearRequests)
		admin.POST("/requests/query", r.handler.QueryRequests)
		admin.GET("/requests/:seq", r.handler.GetRequest)
		admin.GET("/requests/:seq/near-misses", r.handler.GetNearMisses)
		admin.GET("/requests/stream", gin.WrapH(history.NewStreamHandler(r.history)))

		admin.POST("/reset", r.handler.Reset)

		// Statistics
		admin.GET("/stats", r.handler.GetGlobalStats)
		admin.GET("/stats/expectations/:id", r.handler.GetExpectationStats)
		admin.GET("/stats/history", r.handler.GetHistoryStats)
		admin.POST("/stats/reset", r.handler.ResetStats)

		admin.POST("/import/openapi", r.handler.ImportOpenAPI)

		admin.GET("/health", r.handler.HealthCheck)

		// Preflight for any admin path
		admin.OPTIONS("/*any", func(c *gin.Context) {})
	}

	// Everything outside the admin prefix is a mocked request, including
	// methods gin has no route for.
	r.engine.HandleMethodNotAllowed = false
	r.engine.NoRoute(func(c *gin.Context) {
		if isAdminPath(c.Request.URL.Path, r.prefix) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown admin endpoint"})
			return
		}
		r.mock.ServeHTTP(c.Writer, c.Request)
		// Keep gin from appending its own 404 body to an empty mocked 404
		c.Writer.WriteHeaderNow()
	})
}

// isAdminPath reports whether path falls under the reserved admin prefix
func isAdminPath(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
