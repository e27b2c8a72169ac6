package main

import (
	"time"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/johwaworks/QEPipeline/internal/middleware"
)

// Routes assembles the Gin engine with the full API surface.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), s.authOptional())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Username"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	router.Use(cors.New(corsCfg))

	router.GET("/", s.root)

	api := router.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/time", s.serverTime)

		// Credential endpoints carry their own per-account rate limit.
		limited := middleware.RateLimit(s.limiter)
		api.POST("/register", limited, s.register)
		api.POST("/login", limited, s.login)

		api.GET("/admin/pending", s.adminPending)
		api.POST("/admin/approve", s.adminApprove)
		api.GET("/admin/pending-deletions", s.adminPendingDeletions)
		api.POST("/admin/approve-deletion", s.adminApproveDeletion)

		api.GET("/users", s.getUsers)
		api.GET("/users/active", s.getActiveUsers)
		api.POST("/users/activity", s.updateActivity)
		api.GET("/users/:username", s.getUser)
		api.GET("/users/:username/partners", s.getPartners)
		api.GET("/users/:username/partners/requests", s.getPartnerRequests)
		api.POST("/users/:username/partners/requests", s.sendPartnerRequest)
		api.POST("/users/:username/partners/requests/:from/accept", s.acceptPartnerRequest)
		api.POST("/users/:username/partners/requests/:from/reject", s.rejectPartnerRequest)
		api.DELETE("/users/:username/partners/:partner", s.removePartner)
		api.GET("/users/:username/personal-chat-rooms", s.getPersonalChatRooms)
		api.GET("/users/:username/chat-rooms", s.getAllChatRooms)
		api.GET("/profile", s.getProfile)

		api.GET("/projects", s.getProjects)
		api.POST("/projects", s.createProject)
		api.GET("/project/:project_id", s.getProject)
		api.PUT("/project/:project_id", s.updateProject)
		api.PUT("/project/:project_id/workers", s.updateProjectWorkers)
		api.POST("/project/:project_id/delete", s.requestProjectDeletion)
		api.GET("/project/:project_id/shots", s.getShots)
		api.POST("/project/:project_id/shots", s.createShot)
		api.GET("/project/:project_id/messages", s.getProjectMessages)
		api.POST("/project/:project_id/messages", s.createProjectMessage)
		api.GET("/project/:project_id/files", s.getProjectFiles)
		api.POST("/project/:project_id/files", s.uploadProjectFile)
		api.GET("/project/:project_id/files/:file_id", s.downloadProjectFile)
		api.DELETE("/project/:project_id/files/:file_id", s.deleteProjectFile)
		api.GET("/project/:project_id/chat/room", s.getProjectChatRoom)

		api.GET("/shot/:shot_id", s.getShot)
		api.POST("/shot/:shot_id/thumbnail", s.uploadThumbnail)
		api.GET("/shot/:shot_id/thumbnail", s.getThumbnail)
		api.DELETE("/shot/:shot_id/thumbnail", s.deleteThumbnail)
		api.PUT("/shot/:shot_id/resolution", s.updateResolution)
		api.PUT("/shot/:shot_id/resolution/lock", s.updateResolutionLock)
		api.PUT("/shot/:shot_id/description", s.updateDescription)
		api.PUT("/shot/:shot_id/description/lock", s.updateDescriptionLock)
		api.PUT("/shot/:shot_id/duration", s.updateDuration)
		api.PUT("/shot/:shot_id/duration/lock", s.updateDurationLock)
		api.PUT("/shot/:shot_id/workers", s.updateShotWorkers)
		api.PUT("/shot/:shot_id/workers-assignment", s.updateWorkersAssignment)
		api.GET("/shot/:shot_id/messages", s.getShotMessages)
		api.POST("/shot/:shot_id/messages", s.createShotMessage)
		api.GET("/shot/:shot_id/files", s.getShotFiles)
		api.POST("/shot/:shot_id/files", s.uploadShotFile)
		api.GET("/shot/:shot_id/files/:file_id", s.downloadShotFile)
		api.DELETE("/shot/:shot_id/files/:file_id", s.deleteShotFile)
		api.GET("/shot/:shot_id/chat/room", s.getShotChatRoom)

		api.GET("/chat-room/:room_id", s.getChatRoom)
		api.GET("/chat-room/:room_id/messages", s.getChatRoomMessages)
		api.POST("/chat-room/:room_id/messages", s.createChatRoomMessage)
		api.PUT("/chat-room/:room_id/messages/read", s.markChatRoomRead)
		api.GET("/personal-chat/:user_a/:user_b", s.getPersonalChatRoom)
	}

	return router
}
