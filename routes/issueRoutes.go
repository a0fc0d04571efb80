package routes

import (
	"github.com/gin-gonic/gin"

	"civicreport-be/controllers"
)

// IssueRoutes sets up the issue and comment routes. Reads are public;
// writes require authentication and status changes require admin.
func IssueRoutes(
	r *gin.Engine,
	issues *controllers.IssueController,
	comments *controllers.CommentController,
	auth, admin, createLimiter gin.HandlerFunc,
) {
	group := r.Group("/api/issues")
	{
		group.POST("", auth, createLimiter, issues.Create)
		group.GET("", issues.List)
		group.GET("/stats", issues.Stats)
		group.GET("/:id", issues.Get)
		group.PATCH("/:id", auth, issues.Update)
		group.PATCH("/:id/status", auth, admin, issues.UpdateStatus)
		group.DELETE("/:id", auth, issues.Delete)

		group.POST("/:id/comments", auth, comments.Create)
		group.GET("/:id/comments", comments.List)
	}
}
