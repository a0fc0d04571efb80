package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"civicreport-be/config"
	"civicreport-be/controllers"
	"civicreport-be/middlewares"
	"civicreport-be/repositories"
	"civicreport-be/routes"
	"civicreport-be/services"
	"civicreport-be/utils"
)

func main() {
	log := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := config.ConnectDB(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Info("MongoDB connection established successfully!")

	if err := config.EnsureIndexes(db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	redisClient, err := config.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	uploader, err := utils.NewUploader(db)
	if err != nil {
		log.Fatalf("Failed to open upload bucket: %v", err)
	}

	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	mailer := utils.NewSMTPMailer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPass, cfg.EmailFrom)

	userRepo := repositories.NewMongoUserRepository(db)
	issueRepo := repositories.NewMongoIssueRepository(db)
	commentRepo := repositories.NewMongoCommentRepository(db)

	authService := services.NewAuthService(userRepo, tokens)
	issueService := services.NewIssueService(issueRepo, userRepo, commentRepo, mailer, log)
	commentService := services.NewCommentService(commentRepo, issueRepo)

	authController := controllers.NewAuthController(authService)
	issueController := controllers.NewIssueController(issueService, uploader)
	commentController := controllers.NewCommentController(commentService)
	fileController := controllers.NewFileController(uploader)

	r := gin.Default()
	r.Use(cors.Default())

	auth := middlewares.AuthMiddleware(tokens)
	admin := middlewares.RequireAdmin()
	createLimiter := middlewares.IssueRateLimiter(redisClient, cfg.IssueDailyLimit)

	routes.AuthRoutes(r, authController, auth)
	routes.IssueRoutes(r, issueController, commentController, auth, admin, createLimiter)
	routes.FileRoutes(r, fileController)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
