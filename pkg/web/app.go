package web

import (
	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// AppConfig toggles the middleware that tests do not want.
type AppConfig struct {
	RequestLog bool
}

// NewApp builds the fiber app with every route of the API.
func NewApp(h *APIHandlers, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "nurix",
		JSONEncoder: xjson.Marshal,
		JSONDecoder: xjson.Unmarshal,
	})
	app.Use(cors.New())

	if cfg.RequestLog {
		app.Use(logger.New(logger.Config{
			DisableColors: true,
		}))
	}

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Nurix evaluation API")
	})

	app.Post("/detect-error", h.DetectError)

	w := app.Group("/workflows")
	w.Get("/", h.ListActive)
	w.Post("/detections", h.StartDetection)
	w.Post("/monitors", h.StartMonitor)
	w.Get("/:id", h.GetWorkflow)
	w.Get("/:id/result", h.GetResult)
	w.Get("/:id/history", h.GetHistory)
	w.Get("/:id/errors", h.GetErrors)
	w.Get("/:id/report", h.GetReport)
	w.Post("/:id/signals/:name", h.SendSignal)

	app.Get("/errors", h.ListErrors)
	app.Get("/errors/stats", h.GetErrorStats)

	app.Get("/sessions/:socketId", h.GetSession)
	app.Delete("/sessions/:socketId", h.ResetSession)
	app.Get("/cache/stats", h.GetCacheStats)
	app.Delete("/cache/sessions/:socketId", h.InvalidateSessionCache)

	app.Get("/health", h.HealthCheck)

	return app
}
