package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/archive-hub/internal/cache"
	"github.com/any-hub/archive-hub/internal/server"
)

// RegisterHubRoutes 暴露 /-/hubs 诊断接口，供 SRE 查询 Hub 绑定关系与已缓存的版本。
func RegisterHubRoutes(app *fiber.App, registry *server.HubRegistry) {
	if app == nil || registry == nil {
		return
	}

	app.Get("/-/hubs", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"hubs": encodeHubBindings(registry.List()),
		})
	})

	app.Get("/-/hubs/:name/entries", func(c fiber.Ctx) error {
		route, ok := registry.Get(c.Params("name"))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "hub_not_found"})
		}
		var entries []cache.Entry
		if route.Mirror != nil {
			entries = route.Mirror.Snapshot()
		}
		return c.JSON(fiber.Map{
			"hub":     route.Config.Name,
			"entries": encodeEntries(entries),
		})
	})
}

type hubBindingPayload struct {
	HubName       string `json:"hub_name"`
	Domain        string `json:"domain"`
	Port          int    `json:"port"`
	Upstream      string `json:"upstream"`
	AuthMode      string `json:"auth_mode"`
	MaxAgeSeconds int64  `json:"max_age_seconds"`
	Unbounded     bool   `json:"unbounded"`
	Root          string `json:"root"`
	Entries       int    `json:"entries"`
	Fetches       int64  `json:"fetches"`
}

type entryPayload struct {
	Repo      string `json:"repo"`
	Version   string `json:"version"`
	Dir       string `json:"dir"`
	FetchedAt string `json:"fetched_at"`
}

func encodeHubBindings(routes []*server.HubRoute) []hubBindingPayload {
	if len(routes) == 0 {
		return nil
	}
	result := make([]hubBindingPayload, 0, len(routes))
	for _, route := range routes {
		item := hubBindingPayload{
			HubName:       route.Config.Name,
			Domain:        route.Config.Domain,
			Port:          route.ListenPort,
			Upstream:      string(route.Template),
			AuthMode:      route.Config.AuthMode(),
			MaxAgeSeconds: int64(route.MaxAge.Seconds()),
			Unbounded:     route.MaxAge <= 0,
			Root:          route.Root,
		}
		if route.Mirror != nil {
			item.Entries = len(route.Mirror.Snapshot())
			item.Fetches = route.Mirror.Fetches()
		}
		result = append(result, item)
	}
	return result
}

func encodeEntries(entries []cache.Entry) []entryPayload {
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entryPayload{
			Repo:      entry.Key.Repo(),
			Version:   entry.Key.Version,
			Dir:       entry.Dir,
			FetchedAt: entry.FetchedAt.UTC().Format(time.RFC3339),
		})
	}
	return result
}
