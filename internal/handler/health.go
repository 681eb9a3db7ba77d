package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports which collaborators are configured.
type HealthHandler struct {
	redis    *redis.Client
	services map[string]interface{}
}

func NewHealthHandler(redisClient *redis.Client, services map[string]interface{}) *HealthHandler {
	return &HealthHandler{redis: redisClient, services: services}
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	services := fiber.Map{}
	for k, v := range h.services {
		services[k] = v
	}
	if h.redis != nil {
		services["redis"] = h.redis.Ping(c.UserContext()).Err() == nil
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"services": services,
	})
}
