package server

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	apirest "github.com/takeoff-app/takeoff/api/rest"
	"github.com/takeoff-app/takeoff/api/sse"
	mw "github.com/takeoff-app/takeoff/middleware"
	"golang.org/x/time/rate"
)

// checkOrigin rejects browsers calling from an origin outside allowed.
// An empty list allows every origin.
func checkOrigin(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(allowed) > 0 && origin != "" && !slices.Contains(allowed, origin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}
		c.Next()
	}
}

func (s *Server) routes(ctx context.Context) *gin.Engine {
	cfg := s.Config
	sec := cfg.Security
	logger := s.logger

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	auth := mw.Auth(sec, s.Sessions)
	perSession := mw.RateLimit(ctx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst)

	authH := apirest.NewAuthHandler(s.Sessions, s.API, s.Activity, logger)
	taskH := apirest.NewTaskHandler(s.Sessions, s.Tasks)
	questH := apirest.NewQuestHandler(s.Sessions, s.Quests)
	goalH := apirest.NewGoalHandler(s.Sessions, s.LongTerm, s.Ultimate)
	calH := apirest.NewCalendarHandler(s.Sessions, s.Calendar, s.Banners)
	chatH := apirest.NewChatHandler(s.Sessions, s.Chat)
	onbH := apirest.NewOnboardingHandler(s.Sessions, s.Quiz)
	dashH := apirest.NewDashboardHandler(s.Sessions, s.Dashboard, s.Activity, s.Rewards)
	adminH := apirest.NewAdminHandler(s.Sessions, s.Sched, logger)
	sseH := sse.NewHandler(s.PubSub, logger)

	r.GET("/sse", checkOrigin(sec.AllowedOrigins), auth, sseH.ServeSSE)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.GET("/login", authH.Login)
		authG.GET("/callback", authH.Callback)
		authG.POST("/session", authH.CreateSession)
		authG.DELETE("/session", auth, authH.DeleteSession)

		user := api.Group("")
		user.Use(auth, perSession)

		user.GET("/me", dashH.Me)
		user.GET("/focus", dashH.Focus)
		user.GET("/activity", dashH.Activity)
		user.GET("/reward", dashH.Reward)

		user.GET("/tasks", taskH.List)
		user.POST("/tasks", taskH.Create)
		user.POST("/tasks/:id/complete", taskH.Complete)
		user.DELETE("/tasks/:id", taskH.Delete)

		user.GET("/quests", questH.List)
		user.POST("/quests/generate", questH.Generate)
		user.PATCH("/quests/:id/progress", questH.Progress)
		user.POST("/quests/:id/complete", questH.Complete)
		user.DELETE("/quests/:id", questH.Abandon)

		user.GET("/goals", goalH.List)
		user.POST("/goals", goalH.Create)
		user.POST("/goals/:id/milestones/:mid/complete", goalH.CompleteMilestone)
		user.DELETE("/goals/:id", goalH.Abandon)

		user.GET("/ultimate-goals", goalH.ListUltimate)
		user.POST("/ultimate-goals", goalH.CreateUltimate)
		user.POST("/ultimate-goals/:id/milestones/:mid/complete", goalH.CompleteUltimateMilestone)
		user.DELETE("/ultimate-goals/:id", goalH.DeleteUltimate)

		user.GET("/calendar", calH.View)
		user.GET("/calendar/draft", calH.Draft)
		user.POST("/calendar/events", calH.CreateEvent)
		user.DELETE("/calendar/events/:id", calH.DeleteEvent)
		user.POST("/calendar/sync", calH.Sync)
		user.GET("/banners/:channel", calH.Banner)

		user.GET("/chat/greeting", chatH.Greeting)
		user.POST("/chat", chatH.Send)

		onb := user.Group("/onboarding")
		onb.GET("", onbH.State)
		onb.POST("/name", onbH.Name)
		onb.POST("/answer", onbH.Answer)
		onb.POST("/next", onbH.Next)
		onb.POST("/prev", onbH.Prev)
		onb.POST("/submit", onbH.Submit)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(sec.AdminWhitelist), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/stats", adminH.Stats)
		adminG.POST("/sessions/sweep", adminH.Sweep)
	}
	return r
}
