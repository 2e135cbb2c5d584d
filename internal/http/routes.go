package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"example.com/miniblog/internal/config"
	"example.com/miniblog/internal/ws"
)

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env, cfg *config.Config) {

	// --- Middleware ---

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*" // Default to allow all for local dev
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Session resolution happens once per request; handlers read the
	// resolved user from the context.
	router.Use(SessionMiddleware(env.Auth))

	// --- Rate Limiter Setup ---

	limiter := NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	go func() {
		for {
			time.Sleep(10 * time.Minute)
			limiter.mu.Lock()
			for ip, v := range limiter.visitors {
				if v.Allow() {
					// Idle limiter, drop it to keep the map small.
					delete(limiter.visitors, ip)
				}
			}
			limiter.mu.Unlock()
		}
	}()
	limited := RateLimitMiddleware(limiter)

	// --- Routes ---

	router.GET("/healthz", env.Healthz)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", limited, env.Signup)
		authGroup.POST("/login", limited, env.Login)
		authGroup.POST("/logout", env.Logout)
	}

	posts := router.Group("/posts")
	{
		posts.GET("", RequireUser(), env.ListMyPosts)
		posts.POST("", RequireUser(), limited, env.CreatePost)
		posts.GET("/:id", env.GetPost)
		posts.POST("/:id/comments", RequireUser(), limited, env.AddComment)
	}

	users := router.Group("/users")
	{
		users.GET("", env.ListUsers)
		users.GET("/:id", env.GetUser)
	}

	// --- WebSocket Route ---

	if env.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(env.Hub, c.Writer, c.Request)
		})
	}
}
