package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handlers read c.UserContext(), so the timeout middleware must install
// the deadline there for it to reach the service layer.
func TestRequestTimeoutPropagatesToHandlers(t *testing.T) {
	app := fiber.New()
	app.Use(requestTimeoutMiddleware(2 * time.Second))

	var hasDeadline bool
	app.Get("/deadline", func(c *fiber.Ctx) error {
		_, hasDeadline = c.UserContext().Deadline()
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/deadline", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if !hasDeadline {
		t.Fatal("handler context carries no deadline")
	}
}
