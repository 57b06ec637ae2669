// Package redis 提供跨重启的采集状态存储。
//
// 会话每次重连都会重新执行回填窗口内的搜索，索引写入本身是幂等的，
// 但重复走一遍分类/索引对外部模型和存储都是无谓开销。
// 这里用 Redis 记录"已成功入索引"的邮件标识，管道据此跳过重复邮件。
// Redis 不可用或未配置时管道退化为纯幂等写，行为不变，只是多花力气。
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
)

// seenKeyPrefix 已处理邮件标识的键前缀。
const seenKeyPrefix = "onebox:seen:"

// seenTTL 已处理标记的保留时长，须大于回填窗口上限。
const seenTTL = 30 * 24 * time.Hour

// Store 封装 Redis 采集状态客户端。
type Store struct {
	rdb *goredis.Client
	log *zap.Logger
}

// New 创建 Redis 状态存储并验证连通性。
func New(cfg config.RedisConfig, log *zap.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &Store{rdb: rdb, log: log}, nil
}

// IsSeen 检查一封邮件是否已成功处理过。
func (s *Store) IsSeen(ctx context.Context, messageID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, seenKeyPrefix+messageID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen 在邮件成功入索引后打上已处理标记。
func (s *Store) MarkSeen(ctx context.Context, messageID string) error {
	return s.rdb.Set(ctx, seenKeyPrefix+messageID, 1, seenTTL).Err()
}

// Ping 测试 Redis 连接。
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		s.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	return nil
}
