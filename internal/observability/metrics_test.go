package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 40*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 60*time.Millisecond)
	m.RecordError("/api/tickets", "POST", "VALIDATION_FAILED")
	m.RecordSLAAlert("response", "breached")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/tickets|GET|200"])
	assert.Equal(t, int64(100), snap.LatencyMillis["/api/tickets|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/tickets|POST|VALIDATION_FAILED"])
	assert.Equal(t, int64(1), snap.SLAAlerts["response|breached"])

	// snapshot is a copy
	snap.Requests["/api/tickets|GET|200"] = 99
	assert.Equal(t, int64(2), m.Snapshot().Requests["/api/tickets|GET|200"])

	var nilMetrics *Metrics
	nilMetrics.RecordRequest("/", "GET", 200, time.Millisecond)
	nilMetrics.RecordSLAAlert("response", "warning")
}

func TestRequestLogger_CountsRequests(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int64(1), m.Snapshot().Requests["/ping|GET|200"])
}
