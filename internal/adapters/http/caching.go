package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasPrefix(path, "/v1/fares/quote"):
			ttl = "private, max-age=60" // Quotes shift with the calendar

		case strings.HasPrefix(path, "/v1/availability"):
			ttl = "no-store" // Feasibility changes with every booking

		case strings.HasPrefix(path, "/v1/opportunities"):
			ttl = "private, max-age=30" // Offers expire on their own clock

		case strings.HasPrefix(path, "/v1/destinations") || strings.HasPrefix(path, "/v1/holidays"):
			ttl = "public, max-age=3600" // Reference data, changes rarely

		case strings.HasPrefix(path, "/v1/fleet") || strings.HasPrefix(path, "/v1/fare-rules"):
			ttl = "public, max-age=300"

		case path == "/v1/stats":
			ttl = "public, max-age=60"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "private, max-age=0" // Trip state must stay fresh
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
