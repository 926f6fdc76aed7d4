package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/activity-credit-api/internal/config"
	"github.com/noah-isme/activity-credit-api/internal/handler"
)

func TestHealthCheckReportsDependencies(t *testing.T) {
	cfg := config.Config{AppName: "Activity Credit API", AppEnv: "test"}
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name       string
		deps       map[string]handler.Pinger
		wantStatus int
		wantHealth string
	}{
		{"no dependencies", nil, fiber.StatusOK, "ok"},
		{"all up", map[string]handler.Pinger{"postgres": up, "redis": up}, fiber.StatusOK, "ok"},
		{"redis down", map[string]handler.Pinger{"postgres": up, "redis": down}, fiber.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", handler.HealthCheck(cfg, tc.deps))

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
			require.NoError(t, err)
			require.Equal(t, tc.wantStatus, resp.StatusCode)

			var body struct {
				Data handler.HealthResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tc.wantHealth, body.Data.Status)
			require.Equal(t, "test", body.Data.Environment)
			if tc.wantHealth == "degraded" {
				require.Equal(t, "down", body.Data.Dependencies["redis"])
				require.Equal(t, "up", body.Data.Dependencies["postgres"])
			}
		})
	}
}
