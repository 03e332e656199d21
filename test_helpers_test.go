package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// cliOutput 收集 run 写到 stdout/stderr 的内容。
type cliOutput struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// captureOutput 在测试期间把 stdOut/stdErr 替换为内存缓冲区。
func captureOutput(t *testing.T) *cliOutput {
	t.Helper()
	out := &cliOutput{}
	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &out.stdout, &out.stderr
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
	return out
}

// configFixture 指向 internal/config/testdata；go test 的工作目录即模块根目录。
func configFixture(name string) string {
	return filepath.Join("internal", "config", "testdata", name)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}
