package dropbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrNoToken 表示未配置访问令牌；客户端在发起任何网络调用前返回它。
var ErrNoToken = errors.New("dropbox access token not configured")

// APIError carries a non-success RPC status plus a bounded excerpt of the
// provider's error body (error_summary when the body parses as JSON).
type APIError struct {
	Endpoint   string
	StatusCode int
	Summary    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox %s: status=%d %s", e.Endpoint, e.StatusCode, e.Summary)
}

// NotFound reports whether the provider rejected the call because the path
// does not exist (error_summary like "path/not_found/...").
func (e *APIError) NotFound() bool {
	return strings.Contains(e.Summary, "not_found")
}

// FailureKind buckets outbound failures for logs and error responses.
type FailureKind string

const (
	FailureNoToken    FailureKind = "no_token"
	FailureTimeout    FailureKind = "timeout"
	FailureTransport  FailureKind = "transport"
	FailureAPIStatus  FailureKind = "api_status"
	FailureUnexpected FailureKind = "unexpected"
)

// ClassifyFailure maps an error returned by this package onto its kind.
// The order matters: timeouts surface as url.Error too, so they are
// checked before the generic transport bucket.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNoToken) {
		return FailureNoToken
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return FailureAPIStatus
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return FailureTransport
	}
	return FailureUnexpected
}
