//go:build linux

package cache

import (
	"errors"

	"golang.org/x/sys/unix"
)

// exchangeDirs 用 renameat2(RENAME_EXCHANGE) 原子交换两个路径，规范路径在任何时刻都存在。
func exchangeDirs(a, b string) error {
	err := unix.Renameat2(unix.AT_FDCWD, a, unix.AT_FDCWD, b, unix.RENAME_EXCHANGE)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP) {
		return errExchangeUnsupported
	}
	return err
}
