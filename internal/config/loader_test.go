package config

import (
	"testing"
	"time"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(fixturePath("missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StoragePath = "./data"
MaxAge = "boom"

[[Hub]]
Name = "bitbucket"
Domain = "bitbucket.local"
Upstream = "https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadRejectsHubLevelPort(t *testing.T) {
	cfg := `
StoragePath = "./data"

[[Hub]]
Name = "bitbucket"
Domain = "bitbucket.local"
Port = 5001
Upstream = "https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz"
`
	if _, err := Load(writeTempConfig(t, cfg)); err == nil {
		t.Fatalf("Hub 级 Port 应被拒绝")
	}
}

func TestLoadParsesDurationForms(t *testing.T) {
	cfg := `
StoragePath = "./data"
MaxAge = 3600
CacheControlMaxAge = "30d"
FetchTimeout = "90s"

[[Hub]]
Name = "bitbucket"
Domain = "Bitbucket.Local"
Upstream = "https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz"
MaxAge = "never"
StripComponents = 0
`
	loaded, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.Global.MaxAge.DurationValue() != time.Hour {
		t.Fatalf("整数秒应解析为 1h，得到 %s", loaded.Global.MaxAge)
	}
	if loaded.Global.CacheControlSeconds() != 30*24*3600 {
		t.Fatalf("30d 解析错误: %d", loaded.Global.CacheControlSeconds())
	}
	if loaded.Global.FetchTimeout.DurationValue() != 90*time.Second {
		t.Fatalf("FetchTimeout 解析错误")
	}
	hub := loaded.Hubs[0]
	if !hub.MaxAge.IsUnbounded() || loaded.EffectiveMaxAge(hub) != 0 {
		t.Fatalf("never 应解析为 unbounded")
	}
	if hub.Strip() != 0 {
		t.Fatalf("显式 StripComponents = 0 应被保留")
	}
	if hub.Domain != "bitbucket.local" {
		t.Fatalf("Domain 应统一小写，得到 %s", hub.Domain)
	}
}
