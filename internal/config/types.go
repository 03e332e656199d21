package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数、Go Duration 字符串
// 以及 "unbounded"/"infinite"/"never" 这类表示永不过期的关键字。
type Duration time.Duration

// Unbounded 表示显式配置的“永不过期”，与未配置（0）区分开。
const Unbounded Duration = -1

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m"、"unbounded" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DurationValue 返回真实的 time.Duration，Unbounded 映射为 0。
func (d Duration) DurationValue() time.Duration {
	if d.IsUnbounded() {
		return 0
	}
	return time.Duration(d)
}

// IsUnbounded 报告是否显式配置为永不过期。
func (d Duration) IsUnbounded() bool {
	return d == Unbounded
}

func (d Duration) String() string {
	if d.IsUnbounded() {
		return "unbounded"
	}
	return time.Duration(d).String()
}

func parseDuration(value string) (Duration, error) {
	raw := strings.TrimSpace(value)
	switch strings.ToLower(raw) {
	case "":
		return 0, nil
	case "unbounded", "infinite", "never":
		return Unbounded, nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		return Duration(parsed), nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		if n, err := strconv.ParseInt(days, 10, 64); err == nil {
			return Duration(time.Duration(n) * 24 * time.Hour), nil
		}
	}
	if intVal, err := parseInt(raw); err == nil {
		return Duration(time.Duration(intVal) * time.Second), nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(seconds * float64(time.Second))), nil
	}
	return 0, fmt.Errorf("invalid duration value: %s", raw)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有 Hub 共享同一份参数。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	StoragePath        string   `mapstructure:"StoragePath"`
	MaxAge             Duration `mapstructure:"MaxAge"`
	CacheControlMaxAge Duration `mapstructure:"CacheControlMaxAge"`
	MaxRetries         int      `mapstructure:"MaxRetries"`
	InitialBackoff     Duration `mapstructure:"InitialBackoff"`
	UpstreamTimeout    Duration `mapstructure:"UpstreamTimeout"`
	FetchTimeout       Duration `mapstructure:"FetchTimeout"`
	MaxArchiveBytes    int64    `mapstructure:"MaxArchiveBytes"`
}

// CacheControlSeconds 返回响应头 max-age 的秒数。
func (g GlobalConfig) CacheControlSeconds() int {
	return int(g.CacheControlMaxAge.DurationValue() / time.Second)
}

// HubConfig 描述一个归档来源：按 Domain 接入请求，按 Upstream 模板回源。
type HubConfig struct {
	Name     string `mapstructure:"Name"`
	Domain   string `mapstructure:"Domain"`
	Upstream string `mapstructure:"Upstream"`
	Proxy    string `mapstructure:"Proxy"`
	Username string `mapstructure:"Username"`
	Password string `mapstructure:"Password"`
	// MaxAge 为 0 时继承全局值，"unbounded" 表示永不过期。
	MaxAge Duration `mapstructure:"MaxAge"`
	// StripComponents 为解包时剥离的前导目录层数，未配置时为 1。
	StripComponents *int `mapstructure:"StripComponents"`
}

// DefaultStripComponents 对应 bitbucket/github 归档统一带有的一层顶级目录。
const DefaultStripComponents = 1

// Strip 返回生效的剥离层数。
func (h HubConfig) Strip() int {
	if h.StripComponents == nil {
		return DefaultStripComponents
	}
	return *h.StripComponents
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Hubs   []HubConfig  `mapstructure:"Hub"`
}

// HasCredentials 表示当前 Hub 是否配置了完整的上游凭证。
func (h HubConfig) HasCredentials() bool {
	return h.Username != "" && h.Password != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (h HubConfig) AuthMode() string {
	if h.HasCredentials() {
		return "credentialed"
	}
	return "anonymous"
}

// CredentialModes 返回所有 Hub 的鉴权模式摘要，例如 bitbucket:credentialed。
func CredentialModes(hubs []HubConfig) []string {
	if len(hubs) == 0 {
		return nil
	}
	result := make([]string, len(hubs))
	for i, hub := range hubs {
		result[i] = fmt.Sprintf("%s:%s", hub.Name, hub.AuthMode())
	}
	return result
}
