// Package linkcache holds the in-memory store for short-lived signed URLs
// issued by the remote storage provider. Entries are keyed by remote storage
// path and carry an absolute expiry; an entry is served only while
// now < expiresAt and is evicted lazily at lookup time, never by a
// background sweeper goroutine. The mutex guards map access only, so callers
// are free to perform network I/O outside of it; two concurrent misses for
// the same key may both fetch a link and the last writer wins. The resolver
// owns the single process-wide instance.
package linkcache
