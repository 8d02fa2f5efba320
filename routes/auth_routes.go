package routes

import (
	"community-help/controllers"
	middlewares "community-help/middleware"
	"community-help/models"

	"github.com/gin-gonic/gin"
)

func SetupAuthRoutes(r *gin.Engine, d Deps) {
	// Public auth routes
	auth := r.Group("/auth")
	auth.POST("/register", d.Limiter.Middleware(), d.Auth.Register)
	auth.POST("/login", d.Limiter.Middleware(), d.Auth.Login)
	auth.POST("/logout", middlewares.AuthMiddleware(d.Tokens), d.Auth.Logout)

	r.GET("/me", middlewares.AuthMiddleware(d.Tokens), d.Auth.Me)
	r.PUT("/me/password", middlewares.AuthMiddleware(d.Tokens), d.Limiter.Middleware(), d.Auth.ChangePassword)
}

func SetupReportRoutes(r *gin.Engine, d Deps) {
	r.GET("/categories", controllers.GetAllCategories)

	signedIn := r.Group("/", middlewares.AuthMiddleware(d.Tokens))
	signedIn.POST("/reports",
		middlewares.RequireRole(models.RoleCitizen, models.RoleAdmin),
		d.Limiter.Middleware(),
		d.Reports.Create)
	signedIn.GET("/reports/mine", d.Reports.ListMine)
	signedIn.GET("/reports/:id", d.Reports.Get)
	signedIn.GET("/map/markers", d.Map.Markers)
}

func SetupAdminRoutes(r *gin.Engine, d Deps) {
	admin := r.Group("/admin", middlewares.AuthMiddleware(d.Tokens), middlewares.RequireRole(models.RoleAdmin))
	admin.GET("/reports", d.Reports.ListAll)
	admin.GET("/stats", d.Reports.Stats)
	admin.POST("/reports/:id/accept", d.Reports.Accept)
	admin.POST("/reports/:id/reject", d.Reports.Reject)
	admin.POST("/reports/:id/assign", d.Reports.Assign)
	admin.PUT("/users/:id/role", d.Auth.SetRole)
}

func SetupWorkerRoutes(r *gin.Engine, d Deps) {
	worker := r.Group("/worker", middlewares.AuthMiddleware(d.Tokens), middlewares.RequireRole(models.RoleWorker))
	worker.GET("/jobs", d.Reports.Jobs)
	worker.POST("/jobs/:id/start", d.Reports.Start)
	worker.POST("/jobs/:id/resolve", d.Reports.Resolve)
}
