package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/storage"
)

// 键前缀约定：所有记录以 JSON 整体存储
const (
	configKeyPrefix = "legacy:config:"
	unlockKeyPrefix = "legacy:unlock:"
	verifyKeyPrefix = "legacy:verify:"
	cancelKeyPrefix = "legacy:cancel:"
	ownerIdxPrefix  = "legacy:unlock-by-owner:" // set: ownerID -> tokenIDs
)

// Store Redis 存储实现，生产环境的主存储路径。
type Store struct {
	client *redis.Client
	ctx    context.Context
}

// NewStore 创建 Redis 存储实例并验证连接。
func NewStore(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client, ctx: ctx}, nil
}

// GetConfig 根据所有者 ID 获取配置。
func (s *Store) GetConfig(ownerID string) (*domain.LegacyConfig, error) {
	data, err := s.client.Get(s.ctx, configKeyPrefix+ownerID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrConfigNotFound
		}
		return nil, err
	}

	var cfg domain.LegacyConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig 整体保存配置记录，无过期时间。
func (s *Store) SaveConfig(cfg *domain.LegacyConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.client.Set(s.ctx, configKeyPrefix+cfg.OwnerID, data, 0).Err()
}

// DeleteConfig 删除所有者的配置记录。
func (s *Store) DeleteConfig(ownerID string) error {
	n, err := s.client.Del(s.ctx, configKeyPrefix+ownerID).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrConfigNotFound
	}
	return nil
}

// ListConfigs 通过 SCAN 遍历全部配置记录。
// 扫描任务是周期批处理而非请求路径，SCAN 的开销可以接受。
func (s *Store) ListConfigs() ([]*domain.LegacyConfig, error) {
	var result []*domain.LegacyConfig

	iter := s.client.Scan(s.ctx, 0, configKeyPrefix+"*", 100).Iterator()
	for iter.Next(s.ctx) {
		data, err := s.client.Get(s.ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, err
		}
		var cfg domain.LegacyConfig
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("malformed config record %s: %w", iter.Val(), err)
		}
		result = append(result, &cfg)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveUnlockToken 保存解锁令牌并维护所有者索引。
func (s *Store) SaveUnlockToken(token *domain.UnlockToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(s.ctx, unlockKeyPrefix+token.TokenID, data, 0)
	pipe.SAdd(s.ctx, ownerIdxPrefix+token.UserID, token.TokenID)
	_, err = pipe.Exec(s.ctx)
	return err
}

// GetUnlockToken 根据令牌 ID 获取解锁令牌。
func (s *Store) GetUnlockToken(tokenID string) (*domain.UnlockToken, error) {
	data, err := s.client.Get(s.ctx, unlockKeyPrefix+tokenID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrUnlockTokenNotFound
		}
		return nil, err
	}

	var token domain.UnlockToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ListUnlockTokensByOwner 返回指定所有者名下的全部解锁令牌。
func (s *Store) ListUnlockTokensByOwner(ownerID string) ([]*domain.UnlockToken, error) {
	ids, err := s.client.SMembers(s.ctx, ownerIdxPrefix+ownerID).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*domain.UnlockToken, 0, len(ids))
	for _, id := range ids {
		token, err := s.GetUnlockToken(id)
		if err != nil {
			if err == storage.ErrUnlockTokenNotFound {
				continue
			}
			return nil, err
		}
		result = append(result, token)
	}
	return result, nil
}

// SaveVerifyTokenRef 写入验证令牌索引。
func (s *Store) SaveVerifyTokenRef(ref *domain.VerifyTokenRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return s.client.Set(s.ctx, verifyKeyPrefix+ref.Token, data, 0).Err()
}

// GetVerifyTokenRef 根据令牌值查找索引记录。
func (s *Store) GetVerifyTokenRef(token string) (*domain.VerifyTokenRef, error) {
	data, err := s.client.Get(s.ctx, verifyKeyPrefix+token).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrVerifyTokenNotFound
		}
		return nil, err
	}

	var ref domain.VerifyTokenRef
	if err := json.Unmarshal([]byte(data), &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// DeleteVerifyTokenRef 删除验证令牌索引。
func (s *Store) DeleteVerifyTokenRef(token string) error {
	return s.client.Del(s.ctx, verifyKeyPrefix+token).Err()
}

// SaveCancelRecord 保存取消令牌记录。
func (s *Store) SaveCancelRecord(rec *domain.CancelRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(s.ctx, cancelKeyPrefix+rec.Token, data, 0).Err()
}

// GetCancelRecord 根据取消令牌查找记录。
func (s *Store) GetCancelRecord(token string) (*domain.CancelRecord, error) {
	data, err := s.client.Get(s.ctx, cancelKeyPrefix+token).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, storage.ErrCancelTokenNotFound
		}
		return nil, err
	}

	var rec domain.CancelRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteCancelRecord 删除取消令牌记录。
func (s *Store) DeleteCancelRecord(token string) error {
	return s.client.Del(s.ctx, cancelKeyPrefix+token).Err()
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	return s.client.Close()
}

// Health 检查 Redis 连接状态。
func (s *Store) Health() error {
	return s.client.Ping(s.ctx).Err()
}
