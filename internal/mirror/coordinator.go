package mirror

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/archive-hub/internal/cache"
	"github.com/any-hub/archive-hub/internal/fetch"
	"github.com/any-hub/archive-hub/internal/logging"
)

// Coordinator 是单个 Hub 的并发与新鲜度中心：同一 key 同时只有一次回源，
// 所有等待者共享同一结果；失败不会被记忆，下一次请求会重新回源并重新分类。
type Coordinator struct {
	name         string
	store        cache.Store
	fetcher      ArchiveFetcher
	policy       cache.FreshnessPolicy
	fetchTimeout time.Duration
	logger       *logrus.Logger
	now          func() time.Time

	mu      sync.RWMutex
	entries map[cache.ArtifactKey]cache.Entry

	flights singleflight.Group
	fetches atomic.Int64
}

type flightResult struct {
	entry   cache.Entry
	fetched bool
}

// New 校验配置并构建 Coordinator。凭证必须成对出现。
func New(opts Options) (*Coordinator, error) {
	if opts.Password != "" && opts.Username == "" {
		return nil, configError("username", "must provide a username")
	}
	if opts.Username != "" && opts.Password == "" {
		return nil, configError("password", "must provide a password")
	}

	store := opts.Store
	if store == nil {
		if opts.Root == "" {
			return nil, configError("root", "must provide a cache directory")
		}
		s, err := cache.NewStore(opts.Root)
		if err != nil {
			return nil, err
		}
		store = s
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		if opts.Client == nil {
			return nil, configError("client", "must provide an http client")
		}
		f, err := fetch.New(fetch.Options{
			Template:        fetch.Template(opts.Template),
			Client:          opts.Client,
			Username:        opts.Username,
			Password:        opts.Password,
			UserAgent:       opts.UserAgent,
			StripComponents: opts.StripComponents,
			MaxArchiveBytes: opts.MaxArchiveBytes,
		})
		if err != nil {
			return nil, configError("template", err.Error())
		}
		fetcher = f
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	if err := store.Sweep(); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{"action": "cache_sweep", "hub": opts.Name}).Warn("cache_sweep_failed")
	}

	return &Coordinator{
		name:         opts.Name,
		store:        store,
		fetcher:      fetcher,
		policy:       opts.Policy,
		fetchTimeout: timeout,
		logger:       logger,
		now:          now,
		entries:      make(map[cache.ArtifactKey]cache.Entry),
	}, nil
}

// Root 返回缓存根目录。
func (c *Coordinator) Root() string {
	return c.store.Root()
}

// Policy 返回当前生效的新鲜度策略。
func (c *Coordinator) Policy() cache.FreshnessPolicy {
	return c.policy
}

// Fetches 返回累计发起的回源次数。
func (c *Coordinator) Fetches() int64 {
	return c.fetches.Load()
}

// Ensure makes sure a fresh, fully extracted directory exists for key and
// returns it. The boolean reports whether the entry was served from cache
// without fetching. Concurrent calls for one key share a single fetch; a
// caller whose ctx ends stops waiting but does not cancel the shared fetch.
func (c *Coordinator) Ensure(ctx context.Context, key cache.ArtifactKey) (cache.Entry, bool, error) {
	if err := key.Validate(); err != nil {
		return cache.Entry{}, false, err
	}

	if entry, ok := c.freshEntry(ctx, key); ok {
		return entry, true, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key.String(), func() (interface{}, error) {
		return c.fetch(flightCtx, key)
	})

	select {
	case <-ctx.Done():
		return cache.Entry{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return cache.Entry{}, false, res.Err
		}
		result := res.Val.(flightResult)
		return result.entry, !result.fetched, nil
	}
}

// Snapshot 返回当前内存表中的条目（按 key 排序），供诊断接口使用。
func (c *Coordinator) Snapshot() []cache.Entry {
	c.mu.RLock()
	result := make([]cache.Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		result = append(result, entry)
	}
	c.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.String() < result[j].Key.String()
	})
	return result
}

// fetch 在 singleflight 内执行：再次确认新鲜度，然后 stage → fetch → commit。
func (c *Coordinator) fetch(parent context.Context, key cache.ArtifactKey) (flightResult, error) {
	previous, known := c.entry(key)
	if known && c.policy.IsFresh(previous, c.now()) {
		return flightResult{entry: previous}, nil
	}

	ctx, cancel := context.WithTimeout(parent, c.fetchTimeout)
	defer cancel()

	started := time.Now()
	c.fetches.Add(1)
	fields := logging.FetchFields(c.name, key)
	fields["stale"] = known
	c.logger.WithFields(fields).Debug("fetch_start")

	staging, err := c.store.Stage(ctx, key)
	if err != nil {
		c.logFetch(key, started, err)
		return flightResult{}, fmt.Errorf("stage %s: %w", key, err)
	}

	if err := c.fetcher.Fetch(ctx, key, staging); err != nil {
		// 过期条目在上游 404 时保持原样可读，只把错误交给本次调用方。
		c.discard(key, staging)
		c.logFetch(key, started, err)
		return flightResult{}, err
	}

	entry, err := c.store.Commit(ctx, key, staging, c.now().UTC())
	if err != nil {
		c.discard(key, staging)
		c.logFetch(key, started, err)
		return flightResult{}, fmt.Errorf("commit %s: %w", key, err)
	}

	c.remember(entry)
	c.logFetch(key, started, nil)
	return flightResult{entry: entry, fetched: true}, nil
}

// freshEntry 先查内存表，未命中时从磁盘接管上次进程留下的版本目录。
func (c *Coordinator) freshEntry(ctx context.Context, key cache.ArtifactKey) (cache.Entry, bool) {
	entry, ok := c.entry(key)
	if !ok {
		found, err := c.store.Lookup(ctx, key)
		switch {
		case err == nil:
			entry = c.remember(found)
			fields := logging.FetchFields(c.name, key)
			fields["dir"] = found.Dir
			c.logger.WithFields(fields).Debug("cache_adopted")
		case errors.Is(err, cache.ErrNotFound):
			return cache.Entry{}, false
		default:
			c.logger.WithError(err).WithFields(logging.FetchFields(c.name, key)).Warn("cache_lookup_failed")
			return cache.Entry{}, false
		}
	}
	return entry, c.policy.IsFresh(entry, c.now())
}

func (c *Coordinator) entry(key cache.ArtifactKey) (cache.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// remember 写入内存表；若表中已有更新的条目则保留较新的那个。
func (c *Coordinator) remember(entry cache.Entry) cache.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[entry.Key]; ok && existing.FetchedAt.After(entry.FetchedAt) {
		return existing
	}
	c.entries[entry.Key] = entry
	return entry
}

func (c *Coordinator) discard(key cache.ArtifactKey, staging string) {
	if err := c.store.Discard(staging); err != nil {
		fields := logging.FetchFields(c.name, key)
		fields["staging"] = staging
		c.logger.WithError(err).WithFields(fields).Warn("staging_discard_failed")
	}
}

func (c *Coordinator) logFetch(key cache.ArtifactKey, started time.Time, err error) {
	fields := logging.FetchFields(c.name, key)
	fields["action"] = "fetch"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		if kind := fetch.KindOf(err); kind != "" {
			fields["kind"] = string(kind)
		}
		c.logger.WithFields(fields).Error("fetch_failed")
		return
	}
	c.logger.WithFields(fields).Info("fetch_complete")
}
