package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/archive-hub/internal/cache"
	"github.com/any-hub/archive-hub/internal/config"
	"github.com/any-hub/archive-hub/internal/content"
	"github.com/any-hub/archive-hub/internal/mirror"
	"github.com/any-hub/archive-hub/internal/version"
)

// Bootstrap 为每个 Hub 构建 “上游 client → mirror.Coordinator → content.Resolver”
// 管线。凭证缺失等配置问题会以 *mirror.ConfigurationError 直接返回。
func (r *HubRegistry) Bootstrap(cfg *config.Config, logger *logrus.Logger) error {
	if r == nil {
		return fmt.Errorf("hub registry is nil")
	}
	for _, route := range r.ordered {
		coord, err := mirror.New(mirror.Options{
			Name:            route.Config.Name,
			Root:            route.Root,
			Template:        string(route.Template),
			Username:        route.Config.Username,
			Password:        route.Config.Password,
			Client:          NewUpstreamClient(cfg, route, logger),
			Policy:          cache.FreshnessPolicy{MaxAge: route.MaxAge},
			StripComponents: route.Config.Strip(),
			MaxArchiveBytes: cfg.Global.MaxArchiveBytes,
			FetchTimeout:    cfg.Global.FetchTimeout.DurationValue(),
			UserAgent:       version.UserAgent(),
			Logger:          logger,
		})
		if err != nil {
			return fmt.Errorf("hub %s: %w", route.Config.Name, err)
		}
		route.Mirror = coord
		route.Content = content.NewResolver(coord, cfg.Global.CacheControlSeconds())
	}
	return nil
}
