package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/unitasklabs/unitask/internal/admin"
	"github.com/unitasklabs/unitask/internal/alerts"
	"github.com/unitasklabs/unitask/internal/auth"
	"github.com/unitasklabs/unitask/internal/chat"
	"github.com/unitasklabs/unitask/internal/db"
	"github.com/unitasklabs/unitask/internal/earnings"
	"github.com/unitasklabs/unitask/internal/logging"
	"github.com/unitasklabs/unitask/internal/messaging"
	appmw "github.com/unitasklabs/unitask/internal/middleware"
	"github.com/unitasklabs/unitask/internal/profile"
	"github.com/unitasklabs/unitask/internal/report"
	"github.com/unitasklabs/unitask/internal/speech"
	"github.com/unitasklabs/unitask/internal/storage"
	"github.com/unitasklabs/unitask/internal/task"
)

func main() {
	_ = godotenv.Load()

	// Init subsystems
	logging.Init()
	db.Init()
	alerts.Init()
	defer alerts.Close()

	if store, err := storage.NewMinioFromEnv(); err != nil {
		logging.Logger.Warnf("object storage not configured, uploads disabled: %v", err)
	} else {
		profile.Objects = store
		messaging.Objects = store
	}

	chat.Init(chat.NewPGStore())
	speech.Init(speech.NewClient(speech.NewConfigFromEnv()))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "unitask"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if db.Conn == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		if err := db.Conn.Ping(context.Background()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)

	// Public discovery
	e.GET("/users/:id/profile", profile.GetPublicProfile)
	e.GET("/users/:id/reviews", task.GetUserReviews)
	e.GET("/tasks", task.GetOpenTasks)

	// Authenticated group
	g := e.Group("")
	g.Use(appmw.JWTMiddleware)

	g.GET("/auth/me", auth.Me)

	// Own profile
	g.GET("/me/profile", profile.GetMyProfile)
	g.PATCH("/me/profile", profile.UpdateProfile)
	g.POST("/me/avatar", profile.UploadAvatar)
	g.GET("/me/stats", profile.GetMyStats)
	g.GET("/me/tasks", task.GetMyTasks)
	g.GET("/me/earnings", earnings.Balance)
	g.GET("/me/earnings/transactions", earnings.Transactions)

	// Task lifecycle
	g.POST("/tasks", task.CreateTask)
	g.GET("/tasks/:id", task.GetTask)
	g.POST("/tasks/:id/accept", task.AcceptTask)
	g.POST("/tasks/:id/complete", task.CompleteTask)
	g.POST("/tasks/:id/cancel", task.CancelTask)
	g.POST("/tasks/:id/review", task.CreateReview)
	g.GET("/tasks/:id/review", task.GetTaskReview)
	g.POST("/tasks/:id/report", report.CreateReport)

	// Messaging
	g.POST("/tasks/:id/messages", messaging.SendMessage)
	g.GET("/tasks/:id/messages", messaging.ListMessages)
	g.GET("/tasks/:id/messages/unread", messaging.UnreadCount)
	g.POST("/tasks/:id/messages/:message_id/read", messaging.MarkMessageRead)
	g.POST("/tasks/:id/messages/image", messaging.UploadMessageImage)
	g.GET("/tasks/:id/ws", messaging.TaskWS)

	// Chat overview
	g.GET("/chats", chat.ListChats)
	g.GET("/chats/ws", chat.ChatListWS)

	// Speech
	g.POST("/speech/speak", speech.Speak)
	g.GET("/speech/voices", speech.ListVoices)

	// Notifications
	g.GET("/notifications", alerts.ListNotifications)
	g.POST("/notifications/:id/read", alerts.MarkNotificationRead)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(appmw.JWTMiddleware)
	adminGroup.Use(appmw.AdminGuard)

	adminGroup.GET("/stats", admin.Stats)
	adminGroup.GET("/users", admin.ListUsers)
	adminGroup.POST("/users/:id/suspend", admin.SuspendUser)
	adminGroup.POST("/users/:id/activate", admin.ActivateUser)
	adminGroup.POST("/users/:id/verify", admin.VerifyUser)
	adminGroup.GET("/reports", report.ListReports)
	adminGroup.POST("/reports/:id/resolve", report.ResolveReport)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := e.Start(":" + port); err != nil {
		logging.Logger.Fatalf("server error: %v", err)
	}
}
