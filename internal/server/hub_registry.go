package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/any-hub/archive-hub/internal/config"
	"github.com/any-hub/archive-hub/internal/content"
	"github.com/any-hub/archive-hub/internal/fetch"
	"github.com/any-hub/archive-hub/internal/mirror"
)

// HubRoute 将 Hub 配置与派生属性（缓存目录、生效的 MaxAge、解析后的代理地址）
// 聚合在一起，供路由/代理层直接复用，避免重复解析配置。
type HubRoute struct {
	// Config 是用户在 config.toml 中声明的 Hub 字段副本，避免外部修改。
	Config config.HubConfig
	// ListenPort 记录当前 CLI 监听端口，方便日志输出。
	ListenPort int
	// MaxAge 是对当前 Hub 生效的新鲜度上限，0 表示永不过期。
	MaxAge time.Duration
	// Root 为 StoragePath/<hub name>。
	Root     string
	Template fetch.Template
	ProxyURL *url.URL

	// Mirror/Content 由 Bootstrap 填充；未 bootstrap 的路由只能用于路由测试。
	Mirror  *mirror.Coordinator
	Content *content.Resolver
}

// HubRegistry 提供 Host/Host:port 到 HubRoute 的查询能力，所有 Hub 共享同一个监听端口。
type HubRegistry struct {
	routes  map[string]*HubRoute
	byName  map[string]*HubRoute
	ordered []*HubRoute
}

// NewHubRegistry 根据配置构建 Host 映射。调用方应在启动阶段创建一次并复用。
func NewHubRegistry(cfg *config.Config) (*HubRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &HubRegistry{
		routes: make(map[string]*HubRoute, len(cfg.Hubs)),
		byName: make(map[string]*HubRoute, len(cfg.Hubs)),
	}

	for _, hub := range cfg.Hubs {
		normalizedHost := normalizeDomain(hub.Domain)
		if normalizedHost == "" {
			return nil, fmt.Errorf("invalid domain for hub %s", hub.Name)
		}
		if _, exists := registry.routes[normalizedHost]; exists {
			return nil, fmt.Errorf("duplicate domain mapping detected for %s", normalizedHost)
		}
		if _, exists := registry.byName[hub.Name]; exists {
			return nil, fmt.Errorf("duplicate hub name %s", hub.Name)
		}

		route, err := buildHubRoute(cfg, hub)
		if err != nil {
			return nil, err
		}

		registry.routes[normalizedHost] = route
		registry.byName[hub.Name] = route
		registry.ordered = append(registry.ordered, route)
	}

	return registry, nil
}

// Lookup 根据 Host 或 Host:port 查找 HubRoute。
func (r *HubRegistry) Lookup(host string) (*HubRoute, bool) {
	if r == nil {
		return nil, false
	}

	normalizedHost, _ := normalizeHost(host)
	if normalizedHost == "" {
		return nil, false
	}

	route, ok := r.routes[normalizedHost]
	return route, ok
}

// Get 按 Hub 名称查找，供诊断接口使用。
func (r *HubRegistry) Get(name string) (*HubRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.byName[name]
	return route, ok
}

// List 返回当前注册的 HubRoute 列表（按配置定义的顺序），用于诊断输出。
func (r *HubRegistry) List() []*HubRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	return append([]*HubRoute(nil), r.ordered...)
}

func buildHubRoute(cfg *config.Config, hub config.HubConfig) (*HubRoute, error) {
	template := fetch.Template(hub.Upstream)
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upstream for hub %s: %w", hub.Name, err)
	}

	var proxyURL *url.URL
	if hub.Proxy != "" {
		parsed, err := url.Parse(hub.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy for hub %s: %w", hub.Name, err)
		}
		proxyURL = parsed
	}

	return &HubRoute{
		Config:     hub,
		ListenPort: cfg.Global.ListenPort,
		MaxAge:     cfg.EffectiveMaxAge(hub),
		Root:       cfg.HubRoot(hub),
		Template:   template,
		ProxyURL:   proxyURL,
	}, nil
}

func normalizeDomain(domain string) string {
	host, _ := normalizeHost(domain)
	return host
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[idx+1:], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
