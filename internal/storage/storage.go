// Package storage 定义邮件索引存储的抽象接口。
//
// 索引是核心中邮件数据唯一的持久化点：写入按 MessageID 幂等覆盖，
// 查询支持全文匹配加账户/文件夹精确过滤。
// 生产环境由 Elasticsearch 实现，开发与测试由内存实现。
package storage

import (
	"context"

	"onebox/backend/internal/domain"
)

// Store 邮件索引存储接口。
//
// 实现必须支持多采集会话并发调用。
type Store interface {
	// Upsert 按 MessageID 幂等写入一条邮件记录。
	// 同一 MessageID 重复写入为覆盖（last-write-wins），不产生重复文档。
	// 存储不可达时返回 domain.ErrIndex 类错误。
	Upsert(ctx context.Context, msg *domain.Message) error

	// Search 按条件查询邮件，结果按日期倒序，至多 domain.MaxSearchResults 条。
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Message, error)

	// Healthy 探测存储可达性，用于健康检查。
	Healthy(ctx context.Context) error
}
