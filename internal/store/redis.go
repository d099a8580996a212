// Package store 是 Redis 之上的薄封裝
//
// 只暴露目錄服務用得到的能力：
//
//	Hash：HGETALL / HSET / HINCRBY / HINCRBYFLOAT / DEL / EXISTS
//	Set：SADD / SMEMBERS
//	ZSet：ZADD / ZRANGE（依名次，遞增）
//	List：LPUSH / LRANGE / LREM
//	String：GET / SET（餐廳詳細資料 JSON）
//
// 每次呼叫都由 go-redis 自身的逾時與重試設定決定成敗，這裡不再重試。
// 所有 Redis 錯誤都包裝為 STORE_UNAVAILABLE，呼叫端據此區分
// 「資料不存在」與「儲存故障」。
package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
)

// Redis 實作目錄服務需要的儲存能力
type Redis struct {
	client redis.UniversalClient
	logger *slog.Logger

	// 連續失敗次數，成功一次即歸零；寫進日誌並由 /ready 回報
	failures atomic.Int32
}

// NewRedis 建立儲存客戶端
func NewRedis(client redis.UniversalClient, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, logger: logger}
}

// Ping 檢查 Redis 連線
func (s *Redis) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.fail(ctx, "ping", "", err)
	}
	s.succeed()
	return nil
}

// ConsecutiveFailures 回傳目前連續失敗次數
func (s *Redis) ConsecutiveFailures() int32 {
	return s.failures.Load()
}

// HGetAll 讀取整個 hash；key 不存在時回傳空 map
func (s *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.fail(ctx, "hgetall", key, err)
	}
	s.succeed()
	return fields, nil
}

// HSet 寫入多個 hash 欄位
func (s *Redis) HSet(ctx context.Context, key string, fields map[string]any) error {
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return s.fail(ctx, "hset", key, err)
	}
	s.succeed()
	return nil
}

// HIncrBy 整數欄位遞增，回傳遞增後的值
func (s *Redis) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	v, err := s.client.HIncrBy(ctx, key, field, n).Result()
	if err != nil {
		return 0, s.fail(ctx, "hincrby", key, err)
	}
	s.succeed()
	return v, nil
}

// HIncrByFloat 浮點欄位遞增，回傳遞增後的值
func (s *Redis) HIncrByFloat(ctx context.Context, key, field string, n float64) (float64, error) {
	v, err := s.client.HIncrByFloat(ctx, key, field, n).Result()
	if err != nil {
		return 0, s.fail(ctx, "hincrbyfloat", key, err)
	}
	s.succeed()
	return v, nil
}

// Del 刪除 key，回傳實際刪除的數量
func (s *Redis) Del(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return 0, s.fail(ctx, "del", key, err)
	}
	s.succeed()
	return n, nil
}

// Exists 檢查 key 是否存在
func (s *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.fail(ctx, "exists", key, err)
	}
	s.succeed()
	return n > 0, nil
}

// SAdd 加入集合成員
func (s *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SAdd(ctx, key, args...).Err(); err != nil {
		return s.fail(ctx, "sadd", key, err)
	}
	s.succeed()
	return nil
}

// SMembers 列出集合成員（順序不保證）
func (s *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, s.fail(ctx, "smembers", key, err)
	}
	s.succeed()
	return members, nil
}

// ZAdd 新增或更新成員分數
func (s *Redis) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return s.fail(ctx, "zadd", key, err)
	}
	s.succeed()
	return nil
}

// ZRange 依名次範圍讀取成員（分數遞增）
func (s *Redis) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.fail(ctx, "zrange", key, err)
	}
	s.succeed()
	return members, nil
}

// LPush 推入列表頭部，回傳推入後的列表長度
func (s *Redis) LPush(ctx context.Context, key, value string) (int64, error) {
	n, err := s.client.LPush(ctx, key, value).Result()
	if err != nil {
		return 0, s.fail(ctx, "lpush", key, err)
	}
	s.succeed()
	return n, nil
}

// LRange 依索引範圍讀取列表
func (s *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.fail(ctx, "lrange", key, err)
	}
	s.succeed()
	return values, nil
}

// LRem 移除列表中所有等於 value 的元素，回傳移除數量
func (s *Redis) LRem(ctx context.Context, key, value string) (int64, error) {
	n, err := s.client.LRem(ctx, key, 0, value).Result()
	if err != nil {
		return 0, s.fail(ctx, "lrem", key, err)
	}
	s.succeed()
	return n, nil
}

// Get 讀取字串值；key 不存在時 ok 為 false
func (s *Redis) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		s.succeed()
		return "", false, nil
	}
	if err != nil {
		return "", false, s.fail(ctx, "get", key, err)
	}
	s.succeed()
	return value, true, nil
}

// Set 寫入字串值（不過期）
func (s *Redis) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return s.fail(ctx, "set", key, err)
	}
	s.succeed()
	return nil
}

func (s *Redis) succeed() {
	s.failures.Store(0)
}

// fail 記錄錯誤並包裝為 STORE_UNAVAILABLE
func (s *Redis) fail(ctx context.Context, op, key string, err error) error {
	n := s.failures.Add(1)
	s.logger.WarnContext(ctx, "redis call failed",
		"op", op,
		"key", key,
		"consecutive_failures", n,
		"error", err)
	return apperrors.Unavailable("redis "+op, err)
}
