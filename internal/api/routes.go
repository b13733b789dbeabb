package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/complaint-engine/internal/server"
)

// SetupServiceRoutes configures service-specific API routes (not health
// routes, which the server builder registers). Citizen endpoints are public;
// lifecycle, override, and model administration require a staff token when a
// JWT secret is configured.
func SetupServiceRoutes(router *gin.Engine, handler *Handler, jwtSecret string, metrics http.Handler) {
	// Readiness and Prometheus scrape endpoints sit outside the API groups
	router.GET("/ready", handler.ReadyCheck)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := server.PublicGroup(router, "/api/v1")

	// Citizen endpoints
	complaints := v1.Group("/complaints")
	complaints.POST("", handler.SubmitComplaint)          // POST /api/v1/complaints
	complaints.GET("", handler.ListComplaints)            // GET  /api/v1/complaints
	complaints.GET("/search", handler.SearchComplaints)   // GET  /api/v1/complaints/search
	complaints.GET("/:id", handler.GetComplaint)          // GET  /api/v1/complaints/:id
	complaints.POST("/:id/votes", handler.VoteComplaint)  // POST /api/v1/complaints/:id/votes

	v1.GET("/ranked", handler.ListRanked)        // GET /api/v1/ranked
	v1.GET("/categories", handler.ListCategories) // GET /api/v1/categories

	// Staff endpoints - protected with JWT when a secret is configured
	staff := server.ProtectedGroup(router, "/api/v1", jwtSecret)
	staff.PUT("/complaints/:id/status", handler.TransitionStatus)  // PUT /api/v1/complaints/:id/status
	staff.PUT("/complaints/:id/category", handler.OverrideCategory) // PUT /api/v1/complaints/:id/category

	admin := staff.Group("/admin")
	admin.POST("/model/reload", handler.ReloadModel) // POST /api/v1/admin/model/reload
}
