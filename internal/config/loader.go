package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	bindEnvOverrides(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyDropboxDefaults(&cfg.Dropbox)
	applyCogDefaults(&cfg.Cog)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStatic, err := filepath.Abs(cfg.Global.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析静态目录: %w", err)
	}
	cfg.Global.StaticDir = absStatic

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StaticDir", "./static")
	v.SetDefault("StaticRoute", "/static")

	v.SetDefault("Dropbox.Enabled", true)
	v.SetDefault("Dropbox.AccessToken", "")
	v.SetDefault("Dropbox.APIBase", "https://api.dropboxapi.com")
	v.SetDefault("Dropbox.OriginalFolder", "/Soqotra/ROCKART DATABASE/original_images")
	v.SetDefault("Dropbox.ThumbnailFolder", "/Soqotra/ROCKART DATABASE/thumbnails")
	v.SetDefault("Dropbox.LinkCacheTTL", "3h")
	v.SetDefault("Dropbox.LinkTimeout", "10s")

	v.SetDefault("Cog.TargetURL", "")
	v.SetDefault("Cog.RemotePath", "/tiles/orthophoto_shp042_cog.tif")
	v.SetDefault("Cog.UpstreamTimeout", "30s")
}

// bindEnvOverrides 允许通过环境变量注入凭证类配置，避免把密钥写进文件。
func bindEnvOverrides(v *viper.Viper) {
	_ = v.BindEnv("Dropbox.AccessToken", "DROPBOX_ACCESS_TOKEN")
	_ = v.BindEnv("Cog.TargetURL", "DROPBOX_COG_URL")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.StaticDir == "" {
		g.StaticDir = "./static"
	}
	if g.StaticRoute == "" {
		g.StaticRoute = "/static"
	}
}

func applyDropboxDefaults(d *DropboxConfig) {
	if d.APIBase == "" {
		d.APIBase = "https://api.dropboxapi.com"
	}
	if d.LinkCacheTTL.DurationValue() == 0 {
		d.LinkCacheTTL = Duration(3 * time.Hour)
	}
	if d.LinkTimeout.DurationValue() == 0 {
		d.LinkTimeout = Duration(10 * time.Second)
	}
}

func applyCogDefaults(c *CogConfig) {
	if c.UpstreamTimeout.DurationValue() == 0 {
		c.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
