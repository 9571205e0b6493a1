// Package dropbox implements the subset of the Dropbox HTTP API the asset
// layer depends on: temporary links for resolution, shared links for the
// long-lived proxy target, and the account/metadata probes used by the
// connectivity check. All calls are JSON-over-POST with a bearer token.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client issues RPCs against a Dropbox-compatible API base URL.
// The HTTP client is shared and owns the total call timeout.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
}

// New constructs a client; apiBase is overridable so tests can point the
// client at a stub server.
func New(httpClient *http.Client, apiBase, token string) *Client {
	return &Client{
		httpClient: httpClient,
		apiBase:    strings.TrimRight(apiBase, "/"),
		token:      strings.TrimSpace(token),
	}
}

// rpc 执行一次 JSON RPC；params 为 nil 时发送字面量 null（官方 API 的要求）。
func (c *Client) rpc(ctx context.Context, endpoint string, params, out any) error {
	if c.token == "" {
		return ErrNoToken
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Summary:    extractSummary(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// extractSummary prefers the structured error_summary field and falls back
// to the raw (already truncated) body.
func extractSummary(body []byte) string {
	var parsed struct {
		ErrorSummary string `json:"error_summary"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.ErrorSummary != "" {
		return parsed.ErrorSummary
	}
	return strings.TrimSpace(string(body))
}

// GetTemporaryLink asks the provider for a short-lived signed URL.
// The link stays valid for about four hours on the provider side; callers
// cache it for strictly less than that.
func (c *Client) GetTemporaryLink(ctx context.Context, path string) (string, error) {
	var out struct {
		Link string `json:"link"`
	}
	if err := c.rpc(ctx, "/2/files/get_temporary_link", map[string]string{"path": path}, &out); err != nil {
		return "", err
	}
	if out.Link == "" {
		return "", fmt.Errorf("temporary link response missing link value")
	}
	return out.Link, nil
}

// Account 是 users/get_current_account 的精简视图。
type Account struct {
	Email string `json:"email"`
	Name  struct {
		DisplayName string `json:"display_name"`
	} `json:"name"`
}

// GetCurrentAccount verifies that the token is usable at all.
func (c *Client) GetCurrentAccount(ctx context.Context) (Account, error) {
	var out Account
	if err := c.rpc(ctx, "/2/users/get_current_account", nil, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

// FolderEntry 是 files/list_folder 返回的单个条目。
type FolderEntry struct {
	Tag         string `json:".tag"`
	Name        string `json:"name"`
	PathDisplay string `json:"path_display"`
	Size        int64  `json:"size"`
}

// ListFolder returns the direct entries of a folder (first page only; the
// connectivity probe only needs a count, not full pagination).
func (c *Client) ListFolder(ctx context.Context, path string) ([]FolderEntry, error) {
	var out struct {
		Entries []FolderEntry `json:"entries"`
	}
	if err := c.rpc(ctx, "/2/files/list_folder", map[string]string{"path": path}, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Metadata 是 files/get_metadata 的精简视图。
type Metadata struct {
	Tag            string `json:".tag"`
	Name           string `json:"name"`
	Size           int64  `json:"size"`
	ServerModified string `json:"server_modified"`
}

// GetMetadata fetches size/modtime for a single remote object.
func (c *Client) GetMetadata(ctx context.Context, path string) (Metadata, error) {
	var out Metadata
	if err := c.rpc(ctx, "/2/files/get_metadata", map[string]string{"path": path}, &out); err != nil {
		return Metadata{}, err
	}
	return out, nil
}
