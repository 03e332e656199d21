package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// writeTempConfig 把内联 TOML 写入临时目录，返回配置文件路径。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// mustFieldError 断言 err 是指向 field 的 FieldError。
func mustFieldError(t *testing.T, err error, field string) FieldError {
	t.Helper()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("期望 FieldError，得到 %T: %v", err, err)
	}
	if fieldErr.Field != field {
		t.Fatalf("期望字段 %s，得到 %s (%v)", field, fieldErr.Field, err)
	}
	return fieldErr
}
