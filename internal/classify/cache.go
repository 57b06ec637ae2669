package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"onebox/backend/internal/domain"
)

// cachedClassifier 为代价较高的外部分类调用加一层本地结果缓存。
//
// 键为正文摘要，同一封邮件在回填/实时重叠时重复经过管道
// 不会产生第二次模型调用。
//
// 特点：
// - 使用 sync.Map 实现无锁读取
// - 支持 TTL 过期，定期清理过期条目
// - 条目数达到上限后暂停写入，由清理协程腾出空间（丢缓存无害，结果可重算）
type cachedClassifier struct {
	inner   Classifier
	data    sync.Map
	count   atomic.Int64
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	label     domain.Label
	expiresAt time.Time
}

func newCachedClassifier(inner Classifier, maxSize int, ttl time.Duration) *cachedClassifier {
	if maxSize <= 0 {
		maxSize = 2048
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &cachedClassifier{
		inner:   inner,
		maxSize: maxSize,
		ttl:     ttl,
	}

	go c.cleanupLoop()

	return c
}

// Classify 先查缓存，未命中时调用内层分类器并回填缓存。
func (c *cachedClassifier) Classify(ctx context.Context, text string) domain.Label {
	key := cacheKey(text)

	if val, ok := c.data.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.label
		}
		c.data.Delete(key)
		c.count.Add(-1)
	}

	label := c.inner.Classify(ctx, text)

	if c.count.Load() >= int64(c.maxSize) {
		// 缓存已满时放弃写入，等待清理协程腾出空间
		return label
	}
	if _, loaded := c.data.LoadOrStore(key, &cacheEntry{
		label:     label,
		expiresAt: time.Now().Add(c.ttl),
	}); !loaded {
		c.count.Add(1)
	}

	return label
}

// cleanupLoop 定期清理过期条目
func (c *cachedClassifier) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, value interface{}) bool {
			if now.After(value.(*cacheEntry).expiresAt) {
				c.data.Delete(key)
				c.count.Add(-1)
			}
			return true
		})
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
