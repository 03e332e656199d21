package mirror

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/archive-hub/internal/cache"
)

// DefaultFetchTimeout 是单次回源（下载 + 解包 + 提交）的上限。
const DefaultFetchTimeout = 5 * time.Minute

// ArchiveFetcher 把 key 对应的归档解包到 staging，失败时返回 *fetch.Error。
type ArchiveFetcher interface {
	Fetch(ctx context.Context, key cache.ArtifactKey, staging string) error
}

// Options 汇总构造 Coordinator 所需的配置，与 config.HubConfig 一一对应。
type Options struct {
	// Name 仅用于日志字段，通常为 Hub 名称。
	Name string
	// Root 是该实例独占的缓存根目录。
	Root string
	// Template 为上游归档地址模板，例如 https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz。
	Template string
	Username string
	Password string
	Client   *http.Client
	Policy   cache.FreshnessPolicy

	StripComponents int
	MaxArchiveBytes int64
	FetchTimeout    time.Duration
	UserAgent       string

	Logger *logrus.Logger

	// Fetcher/Store 为空时分别根据 Template 与 Root 构建默认实现。
	Fetcher ArchiveFetcher
	Store   cache.Store
	Now     func() time.Time
}
