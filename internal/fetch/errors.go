package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/any-hub/archive-hub/internal/cache"
)

// Kind 区分回源失败的类别，供边界层映射不同的状态码。
type Kind string

const (
	// KindNotFound 上游明确返回 404。
	KindNotFound Kind = "not_found"
	// KindTransfer 网络错误或非 2xx/404 的上游状态。
	KindTransfer Kind = "transfer"
	// KindExtraction 字节已完整收到，但解压或解包失败。
	KindExtraction Kind = "extraction"
)

// Error 携带出错的 ArtifactKey，调用方无需重新拼装上下文即可输出 repo/version。
type Error struct {
	Kind       Kind
	Key        cache.ArtifactKey
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	stage := "fetch"
	if e.Kind == KindExtraction {
		stage = "extract"
	}
	return fmt.Sprintf("failed to %s %s: %v", stage, e.Key, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Repo 返回 "owner/project"。
func (e *Error) Repo() string {
	return e.Key.Repo()
}

// Version 返回请求的原始版本字符串。
func (e *Error) Version() string {
	return e.Key.Version
}

// Code 返回上游状态码的字符串形式（例如 "404"），无状态码时为空。
func (e *Error) Code() string {
	if e.StatusCode == 0 {
		return ""
	}
	return strconv.Itoa(e.StatusCode)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindNotFound
}

// KindOf 返回错误链中的 Kind，非 *Error 时返回空字符串。
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func notFound(key cache.ArtifactKey, status int) *Error {
	return &Error{
		Kind:       KindNotFound,
		Key:        key,
		StatusCode: status,
		Cause:      errors.New(statusText(status)),
	}
}

func transferError(key cache.ArtifactKey, status int, cause error) *Error {
	if cause == nil {
		cause = errors.New(statusText(status))
	}
	return &Error{Kind: KindTransfer, Key: key, StatusCode: status, Cause: cause}
}

func extractionError(key cache.ArtifactKey, cause error) *Error {
	return &Error{Kind: KindExtraction, Key: key, Cause: cause}
}

func statusText(status int) string {
	return fmt.Sprintf("upstream responded %d %s", status, http.StatusText(status))
}
