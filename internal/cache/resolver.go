package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver 把 ArtifactKey 映射为缓存根目录下的规范版本目录，纯函数且结果稳定。
type Resolver struct {
	root string
}

// NewResolver 以 root 的绝对路径构建解析器。
func NewResolver(root string) (Resolver, error) {
	if root == "" {
		return Resolver{}, errors.New("cache root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Resolver{}, fmt.Errorf("resolve cache root: %w", err)
	}
	return Resolver{root: abs}, nil
}

// Root 返回缓存根目录的绝对路径。
func (r Resolver) Root() string {
	return r.root
}

// Resolve returns root/owner/project/version for a valid key.
func (r Resolver) Resolve(key ArtifactKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	dir := filepath.Join(r.root, key.Owner, key.Project, key.Version)
	if !strings.HasPrefix(dir, r.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s escapes cache root", ErrInvalidKey, key)
	}
	return dir, nil
}
