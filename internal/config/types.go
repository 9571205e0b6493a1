package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为：监听端口、日志与本地静态资源。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	StaticDir     string `mapstructure:"StaticDir"`
	StaticRoute   string `mapstructure:"StaticRoute"`
}

// DropboxConfig 决定资源解析层如何访问远端存储。
// AccessToken 可留空：解析层会退回本地静态地址，而不是拒绝启动。
type DropboxConfig struct {
	Enabled         bool     `mapstructure:"Enabled"`
	AccessToken     string   `mapstructure:"AccessToken"`
	APIBase         string   `mapstructure:"APIBase"`
	OriginalFolder  string   `mapstructure:"OriginalFolder"`
	ThumbnailFolder string   `mapstructure:"ThumbnailFolder"`
	LinkCacheTTL    Duration `mapstructure:"LinkCacheTTL"`
	LinkTimeout     Duration `mapstructure:"LinkTimeout"`
}

// CogConfig 描述大体积正射影像（COG）的代理目标。
// TargetURL 为空时 /api/cog-url 会尝试通过临时链接兜底，代理端点则直接报 503。
type CogConfig struct {
	TargetURL       string   `mapstructure:"TargetURL"`
	RemotePath      string   `mapstructure:"RemotePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Dropbox DropboxConfig `mapstructure:"Dropbox"`
	Cog     CogConfig     `mapstructure:"Cog"`
}

// HasToken 表示是否配置了远端存储凭证。
func (d DropboxConfig) HasToken() bool {
	return strings.TrimSpace(d.AccessToken) != ""
}

// ResolveMode 输出 `remote` 或 `local`，供日志字段使用。
func (d DropboxConfig) ResolveMode() string {
	if d.Enabled {
		return "remote"
	}
	return "local"
}

// HasTarget 表示代理目标 URL 是否已配置。
func (c CogConfig) HasTarget() bool {
	return strings.TrimSpace(c.TargetURL) != ""
}
