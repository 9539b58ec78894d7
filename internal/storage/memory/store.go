package memory

import (
	"encoding/json"
	"sync"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/storage"
)

// Store 使用内存保存遗产访问数据，主要用于开发验证与测试。
type Store struct {
	mu            sync.RWMutex
	configs       map[string]*domain.LegacyConfig // ownerID -> config
	unlockTokens  map[string]*domain.UnlockToken  // tokenID -> token
	tokensByOwner map[string][]string             // ownerID -> tokenIDs
	verifyRefs    map[string]*domain.VerifyTokenRef
	cancelRecords map[string]*domain.CancelRecord
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		configs:       make(map[string]*domain.LegacyConfig),
		unlockTokens:  make(map[string]*domain.UnlockToken),
		tokensByOwner: make(map[string][]string),
		verifyRefs:    make(map[string]*domain.VerifyTokenRef),
		cancelRecords: make(map[string]*domain.CancelRecord),
	}
}

// GetConfig 根据所有者 ID 获取配置，返回深拷贝以避免调用方绕过 SaveConfig。
func (s *Store) GetConfig(ownerID string) (*domain.LegacyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[ownerID]
	if !ok {
		return nil, storage.ErrConfigNotFound
	}
	return cloneConfig(cfg), nil
}

// SaveConfig 整体保存配置记录。
func (s *Store) SaveConfig(cfg *domain.LegacyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[cfg.OwnerID] = cloneConfig(cfg)
	return nil
}

// DeleteConfig 删除所有者的配置记录（仅账户删除时）。
func (s *Store) DeleteConfig(ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[ownerID]; !ok {
		return storage.ErrConfigNotFound
	}
	delete(s.configs, ownerID)
	return nil
}

// ListConfigs 返回全部配置的快照。
func (s *Store) ListConfigs() ([]*domain.LegacyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LegacyConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		result = append(result, cloneConfig(cfg))
	}
	return result, nil
}

// SaveUnlockToken 保存解锁令牌。
func (s *Store) SaveUnlockToken(token *domain.UnlockToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.unlockTokens[token.TokenID]; !ok {
		s.tokensByOwner[token.UserID] = append(s.tokensByOwner[token.UserID], token.TokenID)
	}
	cloned := *token
	s.unlockTokens[token.TokenID] = &cloned
	return nil
}

// GetUnlockToken 根据令牌 ID 获取解锁令牌。
func (s *Store) GetUnlockToken(tokenID string) (*domain.UnlockToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.unlockTokens[tokenID]
	if !ok {
		return nil, storage.ErrUnlockTokenNotFound
	}
	cloned := *token
	return &cloned, nil
}

// ListUnlockTokensByOwner 返回指定所有者名下的全部解锁令牌。
func (s *Store) ListUnlockTokensByOwner(ownerID string) ([]*domain.UnlockToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.tokensByOwner[ownerID]
	result := make([]*domain.UnlockToken, 0, len(ids))
	for _, id := range ids {
		if token, ok := s.unlockTokens[id]; ok {
			cloned := *token
			result = append(result, &cloned)
		}
	}
	return result, nil
}

// SaveVerifyTokenRef 写入验证令牌索引。
func (s *Store) SaveVerifyTokenRef(ref *domain.VerifyTokenRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := *ref
	s.verifyRefs[ref.Token] = &cloned
	return nil
}

// GetVerifyTokenRef 根据令牌值查找索引记录。
func (s *Store) GetVerifyTokenRef(token string) (*domain.VerifyTokenRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.verifyRefs[token]
	if !ok {
		return nil, storage.ErrVerifyTokenNotFound
	}
	cloned := *ref
	return &cloned, nil
}

// DeleteVerifyTokenRef 删除验证令牌索引。
func (s *Store) DeleteVerifyTokenRef(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.verifyRefs, token)
	return nil
}

// SaveCancelRecord 保存取消令牌记录。
func (s *Store) SaveCancelRecord(rec *domain.CancelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := *rec
	s.cancelRecords[rec.Token] = &cloned
	return nil
}

// GetCancelRecord 根据取消令牌查找记录。
func (s *Store) GetCancelRecord(token string) (*domain.CancelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.cancelRecords[token]
	if !ok {
		return nil, storage.ErrCancelTokenNotFound
	}
	cloned := *rec
	return &cloned, nil
}

// DeleteCancelRecord 删除取消令牌记录。
func (s *Store) DeleteCancelRecord(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cancelRecords, token)
	return nil
}

// Close 实现 storage.Store 接口，内存存储无需释放资源。
func (s *Store) Close() error { return nil }

// Health 实现 storage.Store 接口。
func (s *Store) Health() error { return nil }

// cloneConfig 通过 JSON 往返做深拷贝，配置记录含嵌套切片与映射。
func cloneConfig(cfg *domain.LegacyConfig) *domain.LegacyConfig {
	data, err := json.Marshal(cfg)
	if err != nil {
		cloned := *cfg
		return &cloned
	}
	var out domain.LegacyConfig
	if err := json.Unmarshal(data, &out); err != nil {
		cloned := *cfg
		return &cloned
	}
	return &out
}
