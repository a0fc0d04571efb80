package routes

import (
	"github.com/gin-gonic/gin"

	"civicreport-be/controllers"
)

// FileRoutes exposes stored uploads.
func FileRoutes(r *gin.Engine, ctrl *controllers.FileController) {
	r.GET("/api/files/:id", ctrl.Get)
}
