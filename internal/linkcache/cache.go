package linkcache

import (
	"sync"
	"time"
)

// Entry 记录一条签名地址及其绝对过期时间。
type Entry struct {
	URL       string
	ExpiresAt time.Time
}

// Stats 是诊断端点使用的缓存快照。
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache 以远端存储路径为键缓存临时链接。
// 进程内唯一实例由解析器持有；没有容量上限，键空间受目录内资源数约束。
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// New 创建使用真实时钟的缓存实例。
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock 允许注入时钟，测试可以精确控制过期边界。
func NewWithClock(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]Entry),
		now:     now,
	}
}

// Lookup 返回键对应的未过期链接。过期条目在此处惰性删除。
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	// 有效条件为 now < ExpiresAt，到点即失效。
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		c.misses++
		return "", false
	}
	c.hits++
	return entry.URL, true
}

// Store 写入或覆盖一条链接，过期时间为当前时刻加 ttl。
func (c *Cache) Store(key, url string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{URL: url, ExpiresAt: c.now().Add(ttl)}
}

// Stats 返回当前条目数与命中统计。
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
