package middleware

import (
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jobsweep/backend/internal/config"
	"github.com/jobsweep/backend/pkg/logger"
)

// Setup configures all middleware for the application
func Setup(app *fiber.App, cfg *config.Config) {
	// Recovery middleware (panic handler)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			fields := []zap.Field{
				zap.String("path", c.Path()),
				zap.Any("panic", e),
			}
			if cfg.Server.Debug {
				fields = append(fields, zap.ByteString("stack", goerrors.Wrap(e, 3).Stack()))
			}
			logger.Error("Handler panicked", fields...)
		},
	}))

	// Request ID middleware
	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	// CORS middleware; credentials only with an explicit origin list
	origins := joinStrings(cfg.CORS.AllowedOrigins)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     joinStrings(cfg.CORS.AllowedMethods),
		AllowHeaders:     joinStrings(cfg.CORS.AllowedHeaders),
		AllowCredentials: origins != "*",
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// Rate limiting middleware
	if cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.RequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			// event streams stay open and are not counted
			Next: isEventStream,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
				})
			},
		}))
	}

	// Logging middleware
	app.Use(RequestLogger(cfg.Server.Debug))

	// Timing middleware
	app.Use(RequestTiming())
}

// RequestLogger returns a logging middleware. Event streams stay open for
// the life of a session and are never reported as slow.
func RequestLogger(debug bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
		}
		if id := c.Params("id"); id != "" {
			fields = append(fields, zap.String("session_id", id))
		}
		if debug {
			fields = append(fields, zap.String("user_agent", c.Get("User-Agent")))
		}

		switch requestLevel(status, duration, isEventStream(c)) {
		case zapcore.ErrorLevel:
			logger.Error("Server error", fields...)
		case zapcore.WarnLevel:
			if status >= 400 {
				logger.Warn("Client error", fields...)
			} else {
				logger.Warn("Slow request", fields...)
			}
		default:
			if debug {
				logger.Debug("Request completed", fields...)
			}
		}

		return err
	}
}

// requestLevel picks the log level for a finished request
func requestLevel(status int, duration time.Duration, stream bool) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case !stream && duration > slowRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

const slowRequest = 2 * time.Second

// RequestTiming sets X-Process-Time on every response but event streams,
// whose body is written after the handler returns
func RequestTiming() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isEventStream(c) {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		c.Set("X-Process-Time", time.Since(start).String())
		return err
	}
}

func isEventStream(c *fiber.Ctx) bool {
	return strings.HasSuffix(c.Path(), "/events")
}

// joinStrings joins strings with comma
func joinStrings(strs []string) string {
	if len(strs) == 0 {
		return "*"
	}
	return strings.Join(strs, ",")
}
