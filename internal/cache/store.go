package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理已解压版本目录的生命周期。磁盘布局遵循：
//
//	<root>/<owner>/<project>/<version>/...   # 已发布的版本目录
//	<root>/.staging/<uuid>/                  # 解压中的临时目录，对读者不可见
//	<root>/.trash/<uuid>/                    # 无法原子交换时被替换下来的旧版本
//
// 版本目录只会被整体 rename 替换，从不原地修改。
type Store interface {
	// Lookup 返回已发布的版本目录。若不存在则返回 ErrNotFound。
	Lookup(ctx context.Context, key ArtifactKey) (Entry, error)

	// Stage 创建一个新的临时目录，调用方向其中写入解压结果。
	Stage(ctx context.Context, key ArtifactKey) (string, error)

	// Commit 将 staging 原子地替换为 key 的规范目录，并以 fetchedAt 作为目录时间戳。
	Commit(ctx context.Context, key ArtifactKey, staging string, fetchedAt time.Time) (Entry, error)

	// Discard 删除尚未提交的临时目录。
	Discard(staging string) error

	// Sweep 清理上一次进程遗留的 .staging/.trash 目录。
	Sweep() error

	// Root 返回缓存根目录。
	Root() string
}

// Entry 描述一个已完整发布、可供读取的版本目录。
type Entry struct {
	Key       ArtifactKey `json:"key"`
	Dir       string      `json:"dir"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// errExchangeUnsupported 表示当前平台或文件系统不支持原子交换目录。
var errExchangeUnsupported = errors.New("atomic directory exchange unsupported")
