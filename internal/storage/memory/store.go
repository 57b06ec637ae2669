// Package memory 提供邮件索引的内存实现（开发环境与测试用）。
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"onebox/backend/internal/domain"
)

// Store 基于互斥锁保护的 map 的内存索引。
//
// 文档按 MessageID 存放，重复写入直接覆盖，天然满足幂等约束。
type Store struct {
	mu       sync.RWMutex
	messages map[string]domain.Message
}

// NewStore 创建内存索引。
func NewStore() *Store {
	return &Store{
		messages: make(map[string]domain.Message),
	}
}

// Upsert 写入或覆盖一条邮件记录。
func (s *Store) Upsert(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[msg.MessageID] = *msg
	return nil
}

// Search 过滤并按日期倒序返回邮件。
func (s *Store) Search(_ context.Context, query domain.SearchQuery) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.Message, 0)
	for _, msg := range s.messages {
		if matchesQuery(msg, query) {
			filtered = append(filtered, msg)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Date.After(filtered[j].Date)
	})

	if len(filtered) > domain.MaxSearchResults {
		filtered = filtered[:domain.MaxSearchResults]
	}

	return filtered, nil
}

// Healthy 内存实现永远可用。
func (s *Store) Healthy(_ context.Context) error {
	return nil
}

// Count 返回当前文档总数（测试辅助）。
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

// matchesQuery 检查邮件是否匹配查询条件。
func matchesQuery(msg domain.Message, query domain.SearchQuery) bool {
	// 关键词搜索（主题、正文、发件人、标签、账户）
	if query.Query != "" {
		q := strings.ToLower(query.Query)
		if !strings.Contains(strings.ToLower(msg.Subject), q) &&
			!strings.Contains(strings.ToLower(msg.Text), q) &&
			!strings.Contains(strings.ToLower(msg.From), q) &&
			!strings.Contains(strings.ToLower(string(msg.Label)), q) &&
			!strings.Contains(strings.ToLower(msg.Account), q) {
			return false
		}
	}

	// 账户精确过滤
	if account := query.AccountFilter(); account != "" && msg.Account != account {
		return false
	}

	// 文件夹精确过滤
	if folder := query.FolderFilter(); folder != "" && msg.Folder != folder {
		return false
	}

	return true
}
