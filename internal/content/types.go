package content

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/any-hub/archive-hub/internal/cache"
)

// DefaultMaxAgeSeconds 为一年：版本目录按约定不可变，分支名同样适用。
const DefaultMaxAgeSeconds = 60 * 60 * 24 * 365

// DefaultContentType 用于无法识别扩展名的文件。
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".js":   "application/javascript",
	".css":  "text/css",
	".json": "application/json",
	".html": "text/html; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".svg":  "image/svg+xml",
	".map":  "application/json",
}

// ContentTypeFor 根据扩展名返回媒体类型，大小写不敏感。
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return DefaultContentType
}

// Request 是从入站路径 /owner/project/version/subpath... 解析出的结构。
type Request struct {
	Owner   string
	Project string
	Version string
	Subpath string
}

// Key 返回对应的 ArtifactKey。
func (r Request) Key() cache.ArtifactKey {
	return cache.ArtifactKey{Owner: r.Owner, Project: r.Project, Version: r.Version}
}

// ParsePath 把 "/owner/project/version/sub/path" 拆成 Request，段数不足时返回 false。
func ParsePath(raw string) (Request, bool) {
	parts := strings.SplitN(strings.TrimPrefix(raw, "/"), "/", 4)
	if len(parts) < 4 || parts[3] == "" {
		return Request{}, false
	}
	return Request{Owner: parts[0], Project: parts[1], Version: parts[2], Subpath: parts[3]}, true
}

// Response 描述成功解析的文件，调用方负责关闭 Reader。
type Response struct {
	Reader        io.ReadCloser
	Size          int64
	ModTime       time.Time
	ContentType   string
	MaxAgeSeconds int
	CacheHit      bool
	Key           cache.ArtifactKey
	Path          string
}

// CacheControl 返回 "public, max-age=N"。
func (r *Response) CacheControl() string {
	return fmt.Sprintf("public, max-age=%d", r.MaxAgeSeconds)
}

// Close 释放底层文件句柄。
func (r *Response) Close() error {
	if r == nil || r.Reader == nil {
		return nil
	}
	return r.Reader.Close()
}
