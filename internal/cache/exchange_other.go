//go:build !linux

package cache

func exchangeDirs(_, _ string) error {
	return errExchangeUnsupported
}
