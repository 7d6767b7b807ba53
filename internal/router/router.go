package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/milepost-dev/milepost/internal/handlers"
	"github.com/milepost-dev/milepost/internal/middleware"
	"github.com/milepost-dev/milepost/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:project_id", middleware.AuthMiddleware(), handlers.WebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.CreateUser)
			auth.POST("/login", handlers.LoginUser)
			auth.POST("/logout", handlers.LogoutUser)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.PATCH("/me", middleware.AuthMiddleware(), handlers.UpdateUser)
			auth.DELETE("/me", middleware.AuthMiddleware(), handlers.DeleteUser)
		}

		teams := api.Group("/teams", middleware.AuthMiddleware())
		{
			teams.POST("", handlers.CreateTeam)
			teams.GET("", handlers.ListTeams)
			teams.GET("/:team_id", handlers.GetTeam)
			teams.PATCH("/:team_id", handlers.UpdateTeam)
			teams.DELETE("/:team_id", handlers.DeleteTeam)

			teams.GET("/:team_id/members", handlers.ListTeamMembers)
			teams.PUT("/:team_id/members/:user_id", handlers.SetTeamMemberRole)
			teams.DELETE("/:team_id/members/:user_id", handlers.RemoveTeamMember)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.POST("", handlers.CreateProject)
			projects.GET("", handlers.ListProjects)
			projects.GET("/:project_id", handlers.GetProject)
			projects.PATCH("/:project_id", handlers.UpdateProject)
			projects.DELETE("/:project_id", handlers.DeleteProject)

			projects.GET("/:project_id/members", handlers.ListProjectMembers)
			projects.PUT("/:project_id/members/:user_id", handlers.SetProjectMemberRole)
			projects.DELETE("/:project_id/members/:user_id", handlers.RemoveProjectMember)

			projects.POST("/:project_id/milestones", handlers.CreateMilestone)
			projects.GET("/:project_id/milestones", handlers.ListMilestones)
		}

		milestones := api.Group("/milestones", middleware.AuthMiddleware())
		{
			milestones.GET("/:milestone_id", handlers.GetMilestone)
			milestones.PATCH("/:milestone_id", handlers.UpdateMilestone)
			milestones.PATCH("/:milestone_id/status", handlers.ChangeMilestoneStatus)
			milestones.DELETE("/:milestone_id", handlers.DeleteMilestone)
			milestones.POST("/:milestone_id/assignees", handlers.AddMilestoneAssignee)
			milestones.DELETE("/:milestone_id/assignees/:user_id", handlers.RemoveMilestoneAssignee)
		}

		invitations := api.Group("/invitations")
		{
			invitations.GET("/verify", handlers.VerifyInvitation)
			invitations.POST("", middleware.AuthMiddleware(), handlers.CreateInvitation)
			invitations.GET("", middleware.AuthMiddleware(), handlers.ListInvitations)
			invitations.POST("/accept", middleware.AuthMiddleware(), handlers.AcceptInvitation)
			invitations.DELETE("/:invitation_id", middleware.AuthMiddleware(), handlers.RevokeInvitation)
		}
	}

	return r
}
