package config

import (
	"errors"
	"fmt"
)

// FieldError 指出出错的配置字段。Cause 保留底层校验错误（例如模板或代理地址解析失败），
// 调用方可以用 errors.As 取出字段路径，再用 errors.Is/As 继续检查原因。
type FieldError struct {
	Field  string
	Reason string
	Cause  error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e FieldError) Unwrap() error {
	return e.Cause
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// hubError 把 Hub 级校验错误包装成 Hub[name].Field 形式的 FieldError。
func hubError(name, field string, cause error) error {
	if cause == nil {
		cause = errors.New("invalid")
	}
	return FieldError{Field: hubField(name, field), Reason: cause.Error(), Cause: cause}
}

func hubField(name, field string) string {
	return fmt.Sprintf("Hub[%s].%s", name, field)
}
