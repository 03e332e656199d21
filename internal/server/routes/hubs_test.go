package routes

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/archive-hub/internal/config"
	"github.com/any-hub/archive-hub/internal/logging"
	"github.com/any-hub/archive-hub/internal/server"
)

func TestHubRoutesListBindings(t *testing.T) {
	app := newDiagnosticsApp(t)

	req := httptest.NewRequest("GET", "http://anything.local/-/hubs", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Hubs []hubBindingPayload `json:"hubs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Hubs) != 2 {
		t.Fatalf("expected 2 hubs, got %d", len(payload.Hubs))
	}
	first := payload.Hubs[0]
	if first.HubName != "bitbucket" || !first.Unbounded || first.AuthMode != "anonymous" {
		t.Fatalf("unexpected binding: %+v", first)
	}
	if first.Entries != 0 || first.Fetches != 0 {
		t.Fatalf("fresh hub should have no entries: %+v", first)
	}
	if second := payload.Hubs[1]; second.MaxAgeSeconds != 3600 || second.AuthMode != "credentialed" {
		t.Fatalf("unexpected binding: %+v", second)
	}
}

func TestHubRoutesEntries(t *testing.T) {
	app := newDiagnosticsApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "http://anything.local/-/hubs/bitbucket/entries", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var payload struct {
		Hub     string         `json:"hub"`
		Entries []entryPayload `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Hub != "bitbucket" || len(payload.Entries) != 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "http://anything.local/-/hubs/missing/entries", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown hub, got %d", resp.StatusCode)
	}
}

func newDiagnosticsApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		Global: config.GlobalConfig{
			ListenPort:         5000,
			StoragePath:        t.TempDir(),
			MaxAge:             config.Unbounded,
			CacheControlMaxAge: config.Duration(365 * 24 * time.Hour),
		},
		Hubs: []config.HubConfig{
			{
				Name:     "bitbucket",
				Domain:   "bitbucket.hub.local",
				Upstream: "https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz",
			},
			{
				Name:     "github",
				Domain:   "github.hub.local",
				Upstream: "https://codeload.github.com/{owner}/{project}/tar.gz/{version}",
				Username: "ci-bot",
				Password: "secret",
				MaxAge:   config.Duration(time.Hour),
			},
		},
	}
	registry, err := server.NewHubRegistry(cfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if err := registry.Bootstrap(cfg, logging.Discard()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:   logging.Discard(),
		Registry: registry,
		Proxy: server.ProxyHandlerFunc(func(c fiber.Ctx, _ *server.HubRoute) error {
			return c.SendStatus(fiber.StatusTeapot)
		}),
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	RegisterHubRoutes(app, registry)
	return app
}
