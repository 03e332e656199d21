package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/any-hub/archive-hub/internal/config"
	"github.com/any-hub/archive-hub/internal/logging"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("ARCHIVE_HUB_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	captureOutput(t)
	code := run(cliOptions{configPath: configFixture("valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	out := captureOutput(t)
	code := run(cliOptions{configPath: configFixture("missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(out.stderr.String(), "Upstream") {
		t.Fatalf("错误输出应指出缺失的 Upstream 字段，得到 %s", out.stderr.String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	out := captureOutput(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(out.stdout.String(), "archive-hub") {
		t.Fatalf("version 输出应包含 archive-hub 标识")
	}
}

func TestBuildRegistryWiresEveryHub(t *testing.T) {
	captureOutput(t)
	storage := t.TempDir()
	configPath := writeConfigFile(t, `
StoragePath = "`+storage+`"

[[Hub]]
Name = "bitbucket"
Domain = "bitbucket.local"
Upstream = "https://bitbucket.org/{owner}/{name}/get/{version}.tar.gz"

[[Hub]]
Name = "github"
Domain = "github.local"
Upstream = "https://codeload.github.com/{owner}/{project}/tar.gz/{version}"
Username = "ci-bot"
Password = "secret"
`)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	registry, err := buildRegistry(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("构建注册表失败: %v", err)
	}
	for _, route := range registry.List() {
		if route.Mirror == nil || route.Content == nil {
			t.Fatalf("hub %s 未完成 bootstrap", route.Config.Name)
		}
		if _, err := os.Stat(filepath.Join(storage, route.Config.Name, ".staging")); err != nil {
			t.Fatalf("hub %s 缓存目录未创建: %v", route.Config.Name, err)
		}
	}
}
