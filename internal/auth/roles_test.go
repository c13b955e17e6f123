package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
)

func newGuardedApp(principal *Principal, guard fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if principal != nil {
			c.Locals(principalKey, principal)
		}
		return c.Next()
	})
	app.Get("/guarded", guard, func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app
}

func TestRequireAuthenticated(t *testing.T) {
	cases := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"technician", &Principal{Role: domain.RoleTechnician}, http.StatusOK},
	}
	for _, tc := range cases {
		app := newGuardedApp(tc.principal, RequireAuthenticated())
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}

func TestRequireElevated(t *testing.T) {
	cases := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"no principal", nil, http.StatusUnauthorized},
		{"technician", &Principal{Role: domain.RoleTechnician}, http.StatusForbidden},
		{"administrator", &Principal{Role: domain.RoleAdministrator}, http.StatusOK},
	}
	for _, tc := range cases {
		app := newGuardedApp(tc.principal, RequireElevated())
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}
