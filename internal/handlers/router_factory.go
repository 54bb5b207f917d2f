package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"codebot/internal/config"
	"codebot/internal/middleware"
	"codebot/internal/observability"
	"codebot/internal/services"
	"codebot/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	userService services.UserServiceInterface,
	problemService services.ProblemServiceInterface,
	submissionService services.SubmissionServiceInterface,
	aiService services.AIServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())

	// Add HTTP request logging middleware using our observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		// Log level tracks the response class
		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "backend",
			"version": version.Version,
			"commit":  version.Commit,
		})
	})

	// Add OpenTelemetry middleware for HTTP tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("codebot-backend"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Setup session middleware
	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   config.SessionSecure, // Set to true in production with HTTPS
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	} else {
		sessionOpts.SameSite = http.SameSiteLaxMode
		sessionOpts.Secure = true
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	// Security middleware
	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	// Initialize handlers
	authHandler := NewAuthHandler(userService, cfg, logger)
	chatHandler := NewChatHandler(aiService, problemService, cfg, logger)
	generateHandler := NewGenerateHandler(aiService, cfg, logger)
	problemHandler := NewProblemHandler(problemService, cfg, logger)
	submissionHandler := NewSubmissionHandler(aiService, problemService, submissionService, cfg, logger)
	solutionHandler := NewSolutionHandler(aiService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"version":    version.Version,
				"commit":     version.Commit,
				"build_time": version.BuildTime,
			})
		})

		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.Me)
			auth.PUT("/track", middleware.RequireAuth(), authHandler.UpdatePreferredTrack)
		}

		// Chat is open to guests; history endpoints need a session
		v1.POST("/chat", middleware.OptionalAuth(), chatHandler.Chat)
		v1.DELETE("/chat/history", middleware.RequireAuth(), chatHandler.ClearHistory)

		v1.POST("/generate/problem", generateHandler.GenerateProblem)

		problems := v1.Group("/problems")
		{
			problems.GET("", problemHandler.ListProblems)
			problems.GET("/:id", problemHandler.GetProblem)
			problems.POST("", middleware.RequireAdmin(cfg.Server.AdminUsername), problemHandler.CreateProblem)
		}

		// Guests can have code graded; only logged-in users leave records
		v1.POST("/submissions", middleware.OptionalAuth(), submissionHandler.CreateSubmission)
		v1.GET("/submissions", middleware.RequireAuth(), submissionHandler.ListSubmissions)
		v1.GET("/submissions/:id", middleware.RequireAuth(), submissionHandler.GetSubmission)

		v1.POST("/solutions/review", solutionHandler.ReviewSolution)
	}

	return router
}
