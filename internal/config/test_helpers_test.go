package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTempConfig 把 TOML 内容写入临时目录，返回配置文件路径。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// testConfigPath 指向 testdata 下的静态夹具。
func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}
