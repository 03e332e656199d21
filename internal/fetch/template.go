package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/any-hub/archive-hub/internal/cache"
)

// 模板占位符；{name} 为 {project} 的别名，兼容 bitbucket 风格的写法。
const (
	placeholderOwner   = "{owner}"
	placeholderProject = "{project}"
	placeholderName    = "{name}"
	placeholderVersion = "{version}"
)

// Format 表示归档的压缩格式。
type Format string

const (
	FormatTarGzip Format = "tar+gzip"
	FormatTarZstd Format = "tar+zstd"
	FormatTar     Format = "tar"
)

// Template 是形如 https://host/{owner}/{name}/get/{version}.tar.gz 的上游地址模板。
type Template string

// Validate 校验模板包含全部占位符，且展开后是合法的 http/https 地址。
func (t Template) Validate() error {
	raw := string(t)
	if raw == "" {
		return errors.New("location template is empty")
	}
	if !strings.Contains(raw, placeholderOwner) {
		return fmt.Errorf("location template missing %s", placeholderOwner)
	}
	if !strings.Contains(raw, placeholderProject) && !strings.Contains(raw, placeholderName) {
		return fmt.Errorf("location template missing %s", placeholderProject)
	}
	if !strings.Contains(raw, placeholderVersion) {
		return fmt.Errorf("location template missing %s", placeholderVersion)
	}

	sample := t.Expand(cache.ArtifactKey{Owner: "owner", Project: "project", Version: "version"})
	parsed, err := url.Parse(sample)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}

// Expand substitutes the key fields, path-escaping each of them.
func (t Template) Expand(key cache.ArtifactKey) string {
	replacer := strings.NewReplacer(
		placeholderOwner, url.PathEscape(key.Owner),
		placeholderProject, url.PathEscape(key.Project),
		placeholderName, url.PathEscape(key.Project),
		placeholderVersion, url.PathEscape(key.Version),
	)
	return replacer.Replace(string(t))
}

// Format 根据模板后缀推断归档格式，无法识别时按 tar.gz 处理。
func (t Template) Format() Format {
	raw := string(t)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	raw = strings.ToLower(raw)
	switch {
	case strings.HasSuffix(raw, ".tar.zst"), strings.HasSuffix(raw, ".tzst"):
		return FormatTarZstd
	case strings.HasSuffix(raw, ".tar"):
		return FormatTar
	default:
		return FormatTarGzip
	}
}
