package logging

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ResolveFields 提供资源解析日志的公共字段：类别、远端路径与缓存命中状态。
func ResolveFields(class, remotePath string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"action":      "resolve_asset",
		"class":       class,
		"remote_path": remotePath,
		"cache_hit":   cacheHit,
	}
}

// ProxyFields 提供 COG 代理日志的公共字段，elapsed 以毫秒记录便于聚合。
func ProxyFields(target string, status int, elapsed time.Duration) logrus.Fields {
	return logrus.Fields{
		"action":     "cog_proxy",
		"target":     target,
		"status":     status,
		"elapsed_ms": elapsed.Milliseconds(),
	}
}
