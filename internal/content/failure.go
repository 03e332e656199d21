package content

import (
	"errors"
	"net/http"

	"github.com/any-hub/archive-hub/internal/cache"
	"github.com/any-hub/archive-hub/internal/fetch"
)

// Status 是失败的分类，边界层据此选择 HTTP 状态码。
type Status string

const (
	// StatusInvalid key 或 subpath 非法。
	StatusInvalid Status = "invalid_request"
	// StatusNotFound 上游明确表示该版本不存在。
	StatusNotFound Status = "not_found"
	// StatusUpstreamError 传输失败或归档无法解包。
	StatusUpstreamError Status = "upstream_error"
	// StatusLocalNotFound 归档已就绪，但其中没有请求的文件。
	StatusLocalNotFound Status = "local_not_found"
	// StatusInternal 本地存储等内部错误。
	StatusInternal Status = "internal_error"
)

// HTTPStatus 返回对应的 HTTP 状态码。
func (s Status) HTTPStatus() int {
	switch s {
	case StatusInvalid:
		return http.StatusBadRequest
	case StatusNotFound, StatusLocalNotFound:
		return http.StatusNotFound
	case StatusUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Failure 携带 repo/version，边界层可以直接渲染 "repo X version Y: <cause>"。
type Failure struct {
	Status  Status
	Message string
	Repo    string
	Version string
	Cause   error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure 从错误链中取出 *Failure。
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

func newFailure(status Status, key cache.ArtifactKey, message string, cause error) *Failure {
	return &Failure{
		Status:  status,
		Message: message,
		Repo:    key.Repo(),
		Version: key.Version,
		Cause:   cause,
	}
}

// classify 把 Ensure 返回的错误映射为 Failure。
func classify(key cache.ArtifactKey, err error) *Failure {
	switch {
	case errors.Is(err, cache.ErrInvalidKey):
		return newFailure(StatusInvalid, key, err.Error(), err)
	case fetch.IsNotFound(err):
		return newFailure(StatusNotFound, key, err.Error(), err)
	case fetch.KindOf(err) != "":
		return newFailure(StatusUpstreamError, key, err.Error(), err)
	default:
		return newFailure(StatusInternal, key, "failed to prepare "+key.String()+": "+err.Error(), err)
	}
}
