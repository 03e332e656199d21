package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/any-hub/archive-hub/internal/cache"
)

// Ensurer 由 mirror.Coordinator 实现：保证 key 对应的版本目录存在且新鲜。
type Ensurer interface {
	Ensure(ctx context.Context, key cache.ArtifactKey) (cache.Entry, bool, error)
}

// Resolver 把 Request 解析为具体文件。并发安全，状态全部在 Ensurer 中。
type Resolver struct {
	mirror        Ensurer
	maxAgeSeconds int
}

// NewResolver 构建 Resolver；maxAgeSeconds <= 0 时使用一年。
func NewResolver(mirror Ensurer, maxAgeSeconds int) *Resolver {
	if maxAgeSeconds <= 0 {
		maxAgeSeconds = DefaultMaxAgeSeconds
	}
	return &Resolver{mirror: mirror, maxAgeSeconds: maxAgeSeconds}
}

// MaxAgeSeconds 返回响应使用的 max-age。
func (r *Resolver) MaxAgeSeconds() int {
	return r.maxAgeSeconds
}

// Resolve ensures the version directory exists, then opens req.Subpath
// inside it. Failures are always *Failure.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Response, error) {
	key := req.Key()
	if err := key.Validate(); err != nil {
		return nil, newFailure(StatusInvalid, key, err.Error(), err)
	}
	subpath, err := cleanSubpath(req.Subpath)
	if err != nil {
		return nil, newFailure(StatusInvalid, key, err.Error(), err)
	}

	entry, cacheHit, err := r.mirror.Ensure(ctx, key)
	if err != nil {
		return nil, classify(key, err)
	}

	// SecureJoin 会把符号链接与 .. 限制在版本目录内部解析。
	filePath, err := securejoin.SecureJoin(entry.Dir, subpath)
	if err != nil {
		return nil, newFailure(StatusInvalid, key, err.Error(), err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, r.localNotFound(key, subpath, err)
		}
		return nil, newFailure(StatusInternal, key, err.Error(), err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, newFailure(StatusInternal, key, err.Error(), err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, r.localNotFound(key, subpath, fs.ErrNotExist)
	}

	return &Response{
		Reader:        file,
		Size:          info.Size(),
		ModTime:       info.ModTime(),
		ContentType:   ContentTypeFor(subpath),
		MaxAgeSeconds: r.maxAgeSeconds,
		CacheHit:      cacheHit,
		Key:           key,
		Path:          subpath,
	}, nil
}

func (r *Resolver) localNotFound(key cache.ArtifactKey, subpath string, cause error) *Failure {
	return newFailure(StatusLocalNotFound, key, fmt.Sprintf("%s not found in %s", subpath, key), cause)
}

// cleanSubpath 归一化 subpath，拒绝空路径、NUL 以及跳出版本目录的 ..。
func cleanSubpath(raw string) (string, error) {
	if strings.ContainsRune(raw, 0) {
		return "", errors.New("subpath contains NUL")
	}
	trimmed := strings.TrimPrefix(strings.ReplaceAll(raw, "\\", "/"), "/")
	if trimmed == "" {
		return "", errors.New("subpath is empty")
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", fmt.Errorf("subpath %q escapes the version directory", raw)
		}
	}
	return path.Clean(trimmed), nil
}
