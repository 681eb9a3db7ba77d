package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/retrocast/api/internal/middleware"
	ws "github.com/retrocast/api/internal/websocket"
)

// Router holds everything needed to mount the HTTP surface.
type Router struct {
	Health  *HealthHandler
	Auth    *AuthHandler
	Process *ProcessHandler
	Match   *MatchHandler
	Library *LibraryHandler
	Worker  *WorkerHandler
	Hub     *ws.Hub

	Authenticate fiber.Handler
	RateLimiter  *middleware.RateLimiter
	PushVerifier middleware.PushVerifier

	ProcessPerHour int
	MatchPerMin    int
}

// Mount registers all routes on app. Nil handlers leave their routes out.
func (r *Router) Mount(app *fiber.App) {
	app.Get("/", r.Health.Root)
	app.Get("/health", r.Health.Health)

	if r.Auth != nil {
		app.Get("/auth/verify", r.Auth.Verify)
	}

	if r.Worker != nil {
		internal := app.Group("/internal/worker", middleware.WorkerAuth(r.PushVerifier))
		internal.Post("/process-video", r.Worker.ProcessVideo)
	}

	api := app.Group("/api", r.Authenticate)

	process := api.Group("/process")
	process.Post("/start", r.RateLimiter.ProcessLimit(r.ProcessPerHour), r.Process.Start)
	process.Get("/latest", r.Process.Latest)
	process.Get("/status/:jobId", r.Process.Status)

	api.Post("/match", r.RateLimiter.MatchLimit(r.MatchPerMin), r.Match.Match)

	if r.Library != nil {
		api.Get("/library/processed", r.Library.Processed)
	}

	if r.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
			r.Hub.HandleConnection(c, c.Params("jobId"))
		}))
	}
}
