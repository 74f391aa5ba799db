package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(
	allowedOrigins []string,
	jwtSecret string,
	authController *AuthController,
	userController *UserController,
	sessionController *SessionController,
	signalController *SignalController,
) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	api.POST("/auth/login", authController.Login)

	users := api.Group("/users")
	users.POST("/create", userController.CreateUser)
	users.GET("/:userID", userController.GetUser)

	authorized := api.Group("")
	authorized.Use(JWTAuth(jwtSecret))

	consultations := authorized.Group("/consultations")
	consultations.GET("", sessionController.ListMyConsultations)
	consultations.GET("/:consultationID", sessionController.GetConsultation)

	live := authorized.Group("/live")
	live.GET("", sessionController.ListActiveLiveSessions)
	live.GET("/:sessionID", sessionController.GetLiveSession)
	live.GET("/room/:room/chat", sessionController.ChatHistory)
	live.GET("/room/:room/viewers", sessionController.LiveViewerCount)

	router.GET("/ws/signal", JWTAuth(jwtSecret), signalController.Connect)

	return router
}
