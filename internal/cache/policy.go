package cache

import "time"

// FreshnessPolicy 决定已有条目是否可以直接复用。MaxAge 为 0 表示无上限：
// 已发布的版本目录永远视为新鲜，不会触发重新下载。
type FreshnessPolicy struct {
	MaxAge time.Duration
}

// Unbounded 返回永不过期的策略，适用于不可变的版本号。
func Unbounded() FreshnessPolicy {
	return FreshnessPolicy{}
}

// IsUnbounded 报告策略是否没有过期时间。
func (p FreshnessPolicy) IsUnbounded() bool {
	return p.MaxAge <= 0
}

// IsFresh 根据 FetchedAt + MaxAge 判断条目是否仍可直接服务。
func (p FreshnessPolicy) IsFresh(entry Entry, now time.Time) bool {
	if p.IsUnbounded() {
		return true
	}
	return now.Before(entry.FetchedAt.Add(p.MaxAge))
}
