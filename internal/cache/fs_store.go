package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

const (
	stagingDirName = ".staging"
	trashDirName   = ".trash"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，每个 Hub 复用一份实例。
func NewStore(basePath string) (Store, error) {
	resolver, err := NewResolver(basePath)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{resolver.Root(), filepath.Join(resolver.Root(), stagingDirName), filepath.Join(resolver.Root(), trashDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage path: %w", err)
		}
	}

	return &fileStore{
		resolver: resolver,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一 ArtifactKey 并发提交，同时复用 resolver。
type fileStore struct {
	resolver Resolver

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Root() string {
	return s.resolver.Root()
}

func (s *fileStore) Lookup(ctx context.Context, key ArtifactKey) (Entry, error) {
	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	default:
	}

	dir, err := s.resolver.Resolve(key)
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if !info.IsDir() {
		return Entry{}, ErrNotFound
	}

	return Entry{
		Key:       key,
		Dir:       dir,
		FetchedAt: info.ModTime(),
	}, nil
}

func (s *fileStore) Stage(ctx context.Context, key ArtifactKey) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := key.Validate(); err != nil {
		return "", err
	}
	staging := filepath.Join(s.Root(), stagingDirName, uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return staging, nil
}

func (s *fileStore) Commit(ctx context.Context, key ArtifactKey, staging string, fetchedAt time.Time) (Entry, error) {
	dir, err := s.resolver.Resolve(key)
	if err != nil {
		return Entry{}, err
	}
	if !s.isStaging(staging) {
		return Entry{}, fmt.Errorf("commit %s: %s is not a staging dir", key, staging)
	}

	unlock := s.lockEntry(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	if err := os.Chtimes(staging, fetchedAt, fetchedAt); err != nil {
		return Entry{}, fmt.Errorf("stamp staging dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return Entry{}, err
	}

	if _, err := os.Stat(dir); err == nil {
		if err := s.replace(dir, staging); err != nil {
			return Entry{}, fmt.Errorf("publish %s: %w", key, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Entry{}, err
	} else if err := os.Rename(staging, dir); err != nil {
		return Entry{}, fmt.Errorf("publish %s: %w", key, err)
	}

	return Entry{
		Key:       key,
		Dir:       dir,
		FetchedAt: fetchedAt,
	}, nil
}

func (s *fileStore) Discard(staging string) error {
	if staging == "" {
		return nil
	}
	if !s.isStaging(staging) {
		return fmt.Errorf("discard: %s is not a staging dir", staging)
	}
	return os.RemoveAll(staging)
}

// replace 用 staging 替换已存在的版本目录。优先原子交换，交换后旧树位于 staging 路径并被删除；
// 不支持交换时退回“旧目录挪到 .trash，再 rename staging”两步，其间规范路径短暂缺失。
func (s *fileStore) replace(dir, staging string) error {
	err := exchangeDirs(staging, dir)
	if err == nil {
		_ = os.RemoveAll(staging)
		return nil
	}
	if !errors.Is(err, errExchangeUnsupported) {
		return err
	}

	trash := filepath.Join(s.Root(), trashDirName, uuid.NewString())
	if err := os.Rename(dir, trash); err != nil {
		return fmt.Errorf("retire previous version: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		if restoreErr := os.Rename(trash, dir); restoreErr != nil {
			err = multierror.Append(err, restoreErr)
		}
		return err
	}
	_ = os.RemoveAll(trash)
	return nil
}

func (s *fileStore) Sweep() error {
	var result *multierror.Error
	for _, name := range []string{stagingDirName, trashDirName} {
		parent := filepath.Join(s.Root(), name)
		entries, err := os.ReadDir(parent)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			result = multierror.Append(result, err)
			continue
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(parent, entry.Name())); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

func (s *fileStore) isStaging(dir string) bool {
	prefix := filepath.Join(s.Root(), stagingDirName) + string(os.PathSeparator)
	clean := filepath.Clean(dir)
	return strings.HasPrefix(clean, prefix) && !strings.Contains(strings.TrimPrefix(clean, prefix), string(os.PathSeparator))
}

func (s *fileStore) lockEntry(key ArtifactKey) func() {
	name := key.String()
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}
