package routes

import (
	"github.com/gin-gonic/gin"

	"civicreport-be/controllers"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, ctrl *controllers.AuthController, auth gin.HandlerFunc) {
	group := r.Group("/api/auth")
	{
		group.POST("/register", ctrl.Register)
		group.POST("/login", ctrl.Login)
		group.GET("/me", auth, ctrl.Me)
	}
}
