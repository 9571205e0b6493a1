package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// providerLinkValidity 是 Dropbox 临时链接自身的有效期；缓存 TTL 必须严格小于它，
// 否则缓存里会出现提供方已经拒绝的过期签名地址。
const providerLinkValidity = 4 * time.Hour

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StaticDir == "" {
		return newFieldError("Global.StaticDir", "不能为空")
	}
	if !strings.HasPrefix(g.StaticRoute, "/") {
		return newFieldError("Global.StaticRoute", "必须以 / 开头")
	}

	d := c.Dropbox
	if d.LinkCacheTTL.DurationValue() <= 0 {
		return newFieldError("Dropbox.LinkCacheTTL", "必须大于 0")
	}
	if d.LinkCacheTTL.DurationValue() >= providerLinkValidity {
		return newFieldError("Dropbox.LinkCacheTTL", "必须小于临时链接有效期 4h")
	}
	if d.LinkTimeout.DurationValue() <= 0 {
		return newFieldError("Dropbox.LinkTimeout", "必须大于 0")
	}
	if err := validateHTTPURL(d.APIBase); err != nil {
		return fmt.Errorf("Dropbox.APIBase: %w", err)
	}
	if d.Enabled {
		if err := validateRemoteFolder(d.OriginalFolder); err != nil {
			return fmt.Errorf("Dropbox.OriginalFolder: %w", err)
		}
		if err := validateRemoteFolder(d.ThumbnailFolder); err != nil {
			return fmt.Errorf("Dropbox.ThumbnailFolder: %w", err)
		}
	}

	cog := c.Cog
	if cog.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Cog.UpstreamTimeout", "必须大于 0")
	}
	if cog.HasTarget() {
		if err := validateHTTPURL(cog.TargetURL); err != nil {
			return fmt.Errorf("Cog.TargetURL: %w", err)
		}
	}
	if cog.RemotePath != "" && !strings.HasPrefix(cog.RemotePath, "/") {
		return newFieldError("Cog.RemotePath", "必须以 / 开头")
	}

	return nil
}

// validateRemoteFolder 校验 Dropbox 侧的目录前缀（启用远端模式时必填）。
func validateRemoteFolder(folder string) error {
	if folder == "" {
		return errors.New("不能为空")
	}
	if !strings.HasPrefix(folder, "/") {
		return errors.New("必须以 / 开头")
	}
	if strings.HasSuffix(folder, "/") {
		return errors.New("不允许以 / 结尾")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
