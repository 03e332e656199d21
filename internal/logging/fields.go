package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/any-hub/archive-hub/internal/cache"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 hub/domain/鉴权模式/命中状态字段，供代理请求日志复用。
func RequestFields(hub, domain, authMode string, key cache.ArtifactKey, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"hub":       hub,
		"domain":    domain,
		"auth_mode": authMode,
		"cache_hit": cacheHit,
	}
	if key.Owner != "" {
		fields["repo"] = key.Repo()
		fields["version"] = key.Version
	}
	return fields
}

// FetchFields 为回源相关日志提供统一的 hub/repo/version 字段。
func FetchFields(hub string, key cache.ArtifactKey) logrus.Fields {
	return logrus.Fields{
		"hub":     hub,
		"repo":    key.Repo(),
		"version": key.Version,
	}
}
