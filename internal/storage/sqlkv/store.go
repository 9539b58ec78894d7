package sqlkv

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/storage"
)

// 记录种类，对应 storage 包的四类仓库
const (
	kindConfig = "config"
	kindUnlock = "unlock_token"
	kindVerify = "verify_token"
	kindCancel = "cancel_token"
)

// Record 单表 KV 记录，所有实体以 JSON 整体存储。
type Record struct {
	Kind      string `gorm:"primaryKey;type:varchar(32)"`
	// 列名避开 SQL 保留字，MySQL 与 PostgreSQL 通用
	Key       string `gorm:"primaryKey;column:record_key;type:varchar(128)"`
	OwnerID   string `gorm:"type:varchar(64);index"` // 按所有者列举解锁令牌用
	Value     []byte
	UpdatedAt time.Time
}

// TableName 指定表名。
func (Record) TableName() string { return "legacy_records" }

// Store 基于单张记录表的 SQL 存储，支持 MySQL 与 PostgreSQL。
type Store struct {
	db *gorm.DB
}

// NewStoreWithType 按数据库类型创建 SQL 存储并自动迁移表结构。
func NewStoreWithType(dbType, dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*Store, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate legacy_records: %w", err)
	}

	return &Store{db: db}, nil
}

// save 以 upsert 语义写入记录。
func (s *Store) save(kind, key, ownerID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	rec := Record{Kind: kind, Key: key, OwnerID: ownerID, Value: data, UpdatedAt: time.Now().UTC()}
	return s.db.Save(&rec).Error
}

// load 读取记录并反序列化到 out。
func (s *Store) load(kind, key string, out interface{}, notFound error) error {
	var rec Record
	err := s.db.Where("kind = ? AND record_key = ?", kind, key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(rec.Value, out)
}

// delete 删除记录，notFound 非空时记录不存在视为错误。
func (s *Store) delete(kind, key string, notFound error) error {
	res := s.db.Where("kind = ? AND record_key = ?", kind, key).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 && notFound != nil {
		return notFound
	}
	return nil
}

// GetConfig 根据所有者 ID 获取配置。
func (s *Store) GetConfig(ownerID string) (*domain.LegacyConfig, error) {
	var cfg domain.LegacyConfig
	if err := s.load(kindConfig, ownerID, &cfg, storage.ErrConfigNotFound); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig 整体保存配置记录。
func (s *Store) SaveConfig(cfg *domain.LegacyConfig) error {
	return s.save(kindConfig, cfg.OwnerID, cfg.OwnerID, cfg)
}

// DeleteConfig 删除所有者的配置记录。
func (s *Store) DeleteConfig(ownerID string) error {
	return s.delete(kindConfig, ownerID, storage.ErrConfigNotFound)
}

// ListConfigs 返回全部配置记录。
func (s *Store) ListConfigs() ([]*domain.LegacyConfig, error) {
	var recs []Record
	if err := s.db.Where("kind = ?", kindConfig).Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.LegacyConfig, 0, len(recs))
	for _, rec := range recs {
		var cfg domain.LegacyConfig
		if err := json.Unmarshal(rec.Value, &cfg); err != nil {
			return nil, fmt.Errorf("malformed config record %s: %w", rec.Key, err)
		}
		result = append(result, &cfg)
	}
	return result, nil
}

// SaveUnlockToken 保存解锁令牌。
func (s *Store) SaveUnlockToken(token *domain.UnlockToken) error {
	return s.save(kindUnlock, token.TokenID, token.UserID, token)
}

// GetUnlockToken 根据令牌 ID 获取解锁令牌。
func (s *Store) GetUnlockToken(tokenID string) (*domain.UnlockToken, error) {
	var token domain.UnlockToken
	if err := s.load(kindUnlock, tokenID, &token, storage.ErrUnlockTokenNotFound); err != nil {
		return nil, err
	}
	return &token, nil
}

// ListUnlockTokensByOwner 返回指定所有者名下的全部解锁令牌。
func (s *Store) ListUnlockTokensByOwner(ownerID string) ([]*domain.UnlockToken, error) {
	var recs []Record
	if err := s.db.Where("kind = ? AND owner_id = ?", kindUnlock, ownerID).Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.UnlockToken, 0, len(recs))
	for _, rec := range recs {
		var token domain.UnlockToken
		if err := json.Unmarshal(rec.Value, &token); err != nil {
			return nil, err
		}
		result = append(result, &token)
	}
	return result, nil
}

// SaveVerifyTokenRef 写入验证令牌索引。
func (s *Store) SaveVerifyTokenRef(ref *domain.VerifyTokenRef) error {
	return s.save(kindVerify, ref.Token, ref.OwnerID, ref)
}

// GetVerifyTokenRef 根据令牌值查找索引记录。
func (s *Store) GetVerifyTokenRef(token string) (*domain.VerifyTokenRef, error) {
	var ref domain.VerifyTokenRef
	if err := s.load(kindVerify, token, &ref, storage.ErrVerifyTokenNotFound); err != nil {
		return nil, err
	}
	return &ref, nil
}

// DeleteVerifyTokenRef 删除验证令牌索引。
func (s *Store) DeleteVerifyTokenRef(token string) error {
	return s.delete(kindVerify, token, nil)
}

// SaveCancelRecord 保存取消令牌记录。
func (s *Store) SaveCancelRecord(rec *domain.CancelRecord) error {
	return s.save(kindCancel, rec.Token, rec.OwnerID, rec)
}

// GetCancelRecord 根据取消令牌查找记录。
func (s *Store) GetCancelRecord(token string) (*domain.CancelRecord, error) {
	var rec domain.CancelRecord
	if err := s.load(kindCancel, token, &rec, storage.ErrCancelTokenNotFound); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteCancelRecord 删除取消令牌记录。
func (s *Store) DeleteCancelRecord(token string) error {
	return s.delete(kindCancel, token, nil)
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接状态。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
