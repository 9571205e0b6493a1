package dropbox

import (
	"context"
	"strings"
)

// SharedLink 是 sharing/* 端点返回的永久共享链接。
type SharedLink struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ListSharedLinks returns the links already minted for a path.
func (c *Client) ListSharedLinks(ctx context.Context, path string) ([]SharedLink, error) {
	var out struct {
		Links []SharedLink `json:"links"`
	}
	params := map[string]any{
		"path":        path,
		"direct_only": true,
	}
	if err := c.rpc(ctx, "/2/sharing/list_shared_links", params, &out); err != nil {
		return nil, err
	}
	return out.Links, nil
}

// CreateSharedLink mints a new shared link for a path.
func (c *Client) CreateSharedLink(ctx context.Context, path string) (SharedLink, error) {
	var out SharedLink
	if err := c.rpc(ctx, "/2/sharing/create_shared_link_with_settings", map[string]any{"path": path}, &out); err != nil {
		return SharedLink{}, err
	}
	return out, nil
}

// EnsureSharedLink reuses an existing shared link when the provider reports
// one and mints a new link otherwise.
func (c *Client) EnsureSharedLink(ctx context.Context, path string) (SharedLink, error) {
	links, err := c.ListSharedLinks(ctx, path)
	if err != nil {
		return SharedLink{}, err
	}
	if len(links) > 0 {
		return links[0], nil
	}
	return c.CreateSharedLink(ctx, path)
}

// DirectDownloadURL 将共享链接的 dl=0 改写为 dl=1，得到可直接下载的地址。
// 地图端的 COG 目标需要这种形式。
func DirectDownloadURL(link string) string {
	return strings.Replace(link, "dl=0", "dl=1", 1)
}
