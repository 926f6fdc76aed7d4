package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Request headers the API reads beyond the standard set.
const (
	HeaderConfirmationToken = "X-Confirmation-Token"
	HeaderCorrelationID     = "X-Correlation-ID"
	HeaderRequestID         = "X-Request-ID"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// AllowOrigins is a comma separated CORS origin list; empty allows all.
	AllowOrigins string
}

// Register attaches the common middlewares used across the API.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	app.Use(recover.New())
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	app.Use(logger.New())
	app.Use(cors.New(corsConfig(cfg.AllowOrigins)))
}

func corsConfig(origins string) cors.Config {
	origins = strings.TrimSpace(origins)
	if origins == "" {
		origins = "*"
	}
	return cors.Config{
		AllowOrigins: origins,
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			HeaderConfirmationToken,
			HeaderCorrelationID,
		}, ", "),
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: strings.Join([]string{HeaderCorrelationID, fiber.HeaderContentDisposition}, ", "),
	}
}
