package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultCacheControlMaxAge = 365 * 24 * time.Hour
	defaultFetchTimeout       = 5 * time.Minute
	defaultMaxArchiveBytes    = 512 << 20
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectHubLevelPorts(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Hubs {
		applyHubDefaults(&cfg.Hubs[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("MaxAge", "unbounded")
	v.SetDefault("CacheControlMaxAge", int64(defaultCacheControlMaxAge/time.Second))
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("FetchTimeout", "5m")
	v.SetDefault("MaxArchiveBytes", defaultMaxArchiveBytes)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.MaxAge == 0 {
		g.MaxAge = Unbounded
	}
	if g.CacheControlMaxAge == 0 {
		g.CacheControlMaxAge = Duration(defaultCacheControlMaxAge)
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
	if g.FetchTimeout.DurationValue() == 0 {
		g.FetchTimeout = Duration(defaultFetchTimeout)
	}
	if g.MaxArchiveBytes == 0 {
		g.MaxArchiveBytes = defaultMaxArchiveBytes
	}
}

func applyHubDefaults(h *HubConfig) {
	h.Name = strings.TrimSpace(h.Name)
	h.Domain = strings.ToLower(strings.TrimSpace(h.Domain))
	h.Upstream = strings.TrimSpace(h.Upstream)
	if h.MaxAge < 0 && !h.MaxAge.IsUnbounded() {
		h.MaxAge = 0
	}
	if h.StripComponents == nil {
		strip := DefaultStripComponents
		h.StripComponents = &strip
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			parsed, err := parseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
			}
			return parsed, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

func rejectHubLevelPorts(v *viper.Viper) error {
	raw := v.Get("Hub")
	hubs, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range hubs {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if _, exists := m["Port"]; exists {
			name := fmt.Sprintf("#%d", idx)
			if rawName, ok := m["Name"].(string); ok && rawName != "" {
				name = rawName
			}
			return newFieldError(hubField(name, "Port"), "字段已弃用，请移除并使用全局 ListenPort")
		}
	}

	return nil
}
