package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/any-hub/archive-hub/internal/fetch"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.MaxAge < 0 && !g.MaxAge.IsUnbounded() {
		return newFieldError("Global.MaxAge", "不能为负数")
	}
	if g.CacheControlMaxAge.DurationValue() <= 0 {
		return newFieldError("Global.CacheControlMaxAge", "必须大于 0")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("Global.FetchTimeout", "必须大于 0")
	}
	if g.MaxArchiveBytes < 0 {
		return newFieldError("Global.MaxArchiveBytes", "不能为负数")
	}

	if len(c.Hubs) == 0 {
		return errors.New("至少需要配置一个 Hub")
	}

	seenNames := map[string]struct{}{}
	seenDomains := map[string]string{}
	for i := range c.Hubs {
		hub := &c.Hubs[i]
		if err := validateHubName(hub.Name); err != nil {
			return hubError(hub.Name, "Name", err)
		}
		if _, exists := seenNames[hub.Name]; exists {
			return newFieldError(hubField(hub.Name, "Name"), "重复")
		}
		seenNames[hub.Name] = struct{}{}

		if err := validateDomain(hub.Domain); err != nil {
			return hubError(hub.Name, "Domain", err)
		}
		if owner, exists := seenDomains[hub.Domain]; exists {
			return newFieldError(hubField(hub.Name, "Domain"), fmt.Sprintf("与 Hub[%s] 重复", owner))
		}
		seenDomains[hub.Domain] = hub.Name

		if (hub.Username == "") != (hub.Password == "") {
			return newFieldError(hubField(hub.Name, "Username/Password"), "必须同时提供或同时留空")
		}
		if err := fetch.Template(hub.Upstream).Validate(); err != nil {
			return hubError(hub.Name, "Upstream", err)
		}
		if hub.Proxy != "" {
			if err := validateProxy(hub.Proxy); err != nil {
				return hubError(hub.Name, "Proxy", err)
			}
		}
		if hub.MaxAge < 0 && !hub.MaxAge.IsUnbounded() {
			return newFieldError(hubField(hub.Name, "MaxAge"), "不能为负数")
		}
		if hub.Strip() < 0 {
			return newFieldError(hubField(hub.Name, "StripComponents"), "不能为负数")
		}
	}

	return nil
}

// validateHubName 保证 Hub 名称可以直接作为缓存子目录使用。
func validateHubName(name string) error {
	switch {
	case name == "":
		return errors.New("不能为空")
	case strings.ContainsAny(name, `/\`):
		return errors.New("不允许包含路径分隔符")
	case strings.HasPrefix(name, "."):
		return errors.New("不允许以 . 开头")
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return errors.New("Domain 不能为空")
	}
	if strings.Contains(domain, "/") {
		return errors.New("Domain 不允许包含路径")
	}
	if strings.Contains(domain, " ") {
		return errors.New("Domain 不允许包含空格")
	}
	if strings.HasPrefix(domain, "http") {
		return errors.New("Domain 不应包含协议头")
	}
	return nil
}

func validateProxy(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch parsed.Scheme {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("仅支持 http/https/socks5 代理: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("代理缺少 Host: %s", raw)
	}
	return nil
}

// EffectiveMaxAge 返回特定 Hub 生效的新鲜度上限，0 表示永不过期。
func (c *Config) EffectiveMaxAge(h HubConfig) time.Duration {
	if h.MaxAge != 0 {
		return h.MaxAge.DurationValue()
	}
	return c.Global.MaxAge.DurationValue()
}

// HubRoot 返回 Hub 独占的缓存根目录：StoragePath/<hub name>。
func (c *Config) HubRoot(h HubConfig) string {
	return filepath.Join(c.Global.StoragePath, h.Name)
}
