package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		duration time.Duration
		stream   bool
		want     zapcore.Level
	}{
		{"server error", 500, time.Millisecond, false, zapcore.ErrorLevel},
		{"client error", 404, time.Millisecond, false, zapcore.WarnLevel},
		{"slow request", 200, 3 * time.Second, false, zapcore.WarnLevel},
		{"long event stream", 200, 10 * time.Minute, true, zapcore.DebugLevel},
		{"failed event stream", 404, time.Millisecond, true, zapcore.WarnLevel},
		{"fast request", 200, time.Millisecond, false, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestLevel(tt.status, tt.duration, tt.stream))
		})
	}
}

func TestRequestTiming_SkipsEventStreams(t *testing.T) {
	app := fiber.New()
	app.Use(RequestTiming())
	app.Get("/api/sessions/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/sessions/:id/events", func(c *fiber.Ctx) error { return c.SendString("data: {}\n\n") })

	resp, err := app.Test(httptest.NewRequest("GET", "/api/sessions/s1", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Header.Get("X-Process-Time"))

	resp, err = app.Test(httptest.NewRequest("GET", "/api/sessions/s1/events", nil))
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("X-Process-Time"))
}
