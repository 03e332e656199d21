package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey 表示 owner/project/version 中存在无法安全落盘的字段。
var ErrInvalidKey = errors.New("invalid artifact key")

// ArtifactKey 唯一标识一个不可变的归档版本，三个字段均按大小写敏感的字符串比较。
type ArtifactKey struct {
	Owner   string
	Project string
	Version string
}

// Repo 返回 "owner/project" 形式的仓库名，供错误与日志复用。
func (k ArtifactKey) Repo() string {
	return k.Owner + "/" + k.Project
}

// String 返回 owner/project@version，同时作为并发去重的键。
func (k ArtifactKey) String() string {
	return k.Repo() + "@" + k.Version
}

// Validate 拒绝会逃逸缓存根目录或与内部目录（.staging/.trash）冲突的字段。
func (k ArtifactKey) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"owner", k.Owner},
		{"project", k.Project},
		{"version", k.Version},
	}
	for _, f := range fields {
		if err := validateSegment(f.value); err != nil {
			return fmt.Errorf("%w: %s %q %v", ErrInvalidKey, f.name, f.value, err)
		}
	}
	return nil
}

func validateSegment(value string) error {
	switch {
	case value == "":
		return errors.New("is empty")
	case strings.ContainsAny(value, "/\\\x00"):
		return errors.New("contains a path separator")
	case strings.HasPrefix(value, "."):
		return errors.New("must not start with a dot")
	}
	return nil
}
