package service

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/monitoring"
	"heritage/backend/internal/storage"
	"heritage/backend/internal/token"
)

// 验证令牌有效期：添加时立即通知 30 天，手动补发/换发 14 天。
// 解锁事件中发出的令牌没有有效期（受益人可能多年后才处理）。
const (
	immediateTokenTTL = 30 * 24 * time.Hour
	manualTokenTTL    = 14 * 24 * time.Hour
)

// BeneficiaryService 封装受益人生命周期操作。
type BeneficiaryService struct {
	store    storage.Store
	configs  *LegacyConfigService
	notifier *NotificationService
	metrics  *monitoring.Metrics // 可为 nil（测试）
	log      *zap.Logger
	now      func() time.Time
}

// NewBeneficiaryService 创建受益人服务。
func NewBeneficiaryService(store storage.Store, configs *LegacyConfigService, notifier *NotificationService, metrics *monitoring.Metrics, log *zap.Logger) *BeneficiaryService {
	return &BeneficiaryService{
		store:    store,
		configs:  configs,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow 注入时钟，测试用。
func (s *BeneficiaryService) SetNow(now func() time.Time) {
	s.now = now
}

// AddBeneficiaryInput 定义添加受益人所需的输入。
type AddBeneficiaryInput struct {
	Name              string
	Email             string
	Phone             string
	PersonalMessage   string
	FolderPermissions map[string]domain.FolderPermission
	NotificationTiming domain.NotificationTiming // 缺省为 deferred
}

// Add 添加受益人。
//
// immediate 路径：签发 30 天验证令牌，状态 pending，同步发送验证邮件；
// deferred 路径（默认）：状态 pending_unlock，不发令牌不发邮件，
// 验证推迟到解锁触发时。受益人记录先持久化，邮件失败不回滚。
func (s *BeneficiaryService) Add(ownerID, ownerEmail string, input AddBeneficiaryInput) (*domain.Beneficiary, error) {
	cfg, err := s.configs.GetOrCreate(ownerID, ownerEmail)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// 自指检查：不能把自己的账户邮箱设为受益人
	if email != "" && email == strings.ToLower(strings.TrimSpace(cfg.OwnerEmail)) {
		return nil, ErrSelfDesignation
	}

	// 同一邮箱最多一个未撤销受益人
	if cfg.ActiveBeneficiaryByEmail(email) != nil {
		return nil, ErrDuplicateBeneficiary
	}

	timing := input.NotificationTiming
	if timing == "" {
		timing = domain.TimingDeferred
	}

	now := s.now()
	b := domain.Beneficiary{
		ID:                token.NewID(),
		Name:              input.Name,
		Email:             email,
		Phone:             input.Phone,
		PersonalMessage:   input.PersonalMessage,
		FolderPermissions: input.FolderPermissions,
		AddedAt:           now,
		AddedWithTrigger:  cfg.TriggerSnapshotOf(),
		NotificationTiming: timing,
	}

	if timing == domain.TimingImmediate {
		expires := now.Add(immediateTokenTTL)
		b.Status = domain.StatusPending
		b.VerificationToken = token.New()
		b.TokenExpiresAt = &expires
		b.NotificationContext = domain.ContextImmediate
		b.NotificationSentAt = &now
	} else {
		b.Status = domain.StatusPendingUnlock
	}

	cfg.Beneficiaries = append(cfg.Beneficiaries, b)
	if err := s.configs.Save(cfg); err != nil {
		return nil, err
	}

	if b.Status == domain.StatusPending {
		if err := s.store.SaveVerifyTokenRef(&domain.VerifyTokenRef{
			Token:         b.VerificationToken,
			OwnerID:       ownerID,
			BeneficiaryID: b.ID,
		}); err != nil {
			// 索引写入失败只影响验证路径，记录后继续
			s.log.Error("failed to index verification token", zap.Error(err))
		}
		s.notifier.SendVerification(cfg, &b)
	}

	if s.metrics != nil {
		s.metrics.BeneficiariesAdded.Inc()
	}
	s.log.Info("beneficiary added",
		zap.String("owner_id", ownerID),
		zap.String("beneficiary_id", b.ID),
		zap.String("status", string(b.Status)),
	)
	return &b, nil
}

// List 返回所有者的全部受益人（含已撤销，审计视图）。
func (s *BeneficiaryService) List(ownerID, ownerEmail string) ([]domain.Beneficiary, error) {
	cfg, err := s.configs.GetOrCreate(ownerID, ownerEmail)
	if err != nil {
		return nil, err
	}
	return cfg.Beneficiaries, nil
}

// Remove 撤销受益人。记录从不物理删除，revoked 为终态并保留审计痕迹。
func (s *BeneficiaryService) Remove(ownerID, beneficiaryID string) error {
	cfg, err := s.store.GetConfig(ownerID)
	if err != nil {
		return err
	}

	b := cfg.FindBeneficiary(beneficiaryID)
	if b == nil {
		return ErrBeneficiaryNotFound
	}
	if b.Status == domain.StatusRevoked {
		return ErrInvalidState
	}

	if b.VerificationToken != "" {
		if err := s.store.DeleteVerifyTokenRef(b.VerificationToken); err != nil {
			s.log.Warn("failed to drop verification token index", zap.Error(err))
		}
	}

	now := s.now()
	b.Status = domain.StatusRevoked
	b.RevokedAt = &now
	b.VerificationToken = ""
	b.TokenExpiresAt = nil

	if err := s.configs.Save(cfg); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.BeneficiariesRevoked.Inc()
	}
	s.log.Info("beneficiary revoked",
		zap.String("owner_id", ownerID),
		zap.String("beneficiary_id", beneficiaryID),
	)
	return nil
}

// SendNotification 手动通知仍处于 pending_unlock 的受益人。
// 签发 14 天令牌并转入 pending；已通知或已验证的受益人返回 ErrInvalidState。
func (s *BeneficiaryService) SendNotification(ownerID, beneficiaryID string) error {
	cfg, err := s.store.GetConfig(ownerID)
	if err != nil {
		return err
	}

	b := cfg.FindBeneficiary(beneficiaryID)
	if b == nil {
		return ErrBeneficiaryNotFound
	}
	if b.Status != domain.StatusPendingUnlock {
		return ErrInvalidState
	}

	now := s.now()
	expires := now.Add(manualTokenTTL)
	b.Status = domain.StatusPending
	b.VerificationToken = token.New()
	b.TokenExpiresAt = &expires
	b.NotificationContext = domain.ContextManual
	b.NotificationSentAt = &now

	if err := s.configs.Save(cfg); err != nil {
		return err
	}

	if err := s.store.SaveVerifyTokenRef(&domain.VerifyTokenRef{
		Token:         b.VerificationToken,
		OwnerID:       ownerID,
		BeneficiaryID: b.ID,
	}); err != nil {
		s.log.Error("failed to index verification token", zap.Error(err))
	}
	s.notifier.SendVerification(cfg, b)
	return nil
}

// Verify 全局验证受益人令牌。
//
// 通过二级索引定位，不做前缀扫描。找不到匹配的待验证令牌统一返回
// ErrTokenNotFound，不区分"从未存在/已验证/已撤销"。解锁事件中签发的
// 令牌没有有效期，永远不会命中过期分支。
func (s *BeneficiaryService) Verify(tokenValue string) (*domain.Beneficiary, error) {
	ref, err := s.store.GetVerifyTokenRef(tokenValue)
	if err == storage.ErrVerifyTokenNotFound {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg, err := s.store.GetConfig(ref.OwnerID)
	if err == storage.ErrConfigNotFound {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}

	b := cfg.FindBeneficiary(ref.BeneficiaryID)
	if b == nil || b.Status != domain.StatusPending || b.VerificationToken != tokenValue {
		return nil, ErrTokenNotFound
	}

	now := s.now()
	if b.TokenExpired(now) {
		return nil, ErrTokenExpired
	}

	b.Status = domain.StatusVerified
	b.VerifiedAt = &now
	b.VerificationToken = ""
	b.TokenExpiresAt = nil

	if err := s.configs.Save(cfg); err != nil {
		return nil, err
	}
	if err := s.store.DeleteVerifyTokenRef(tokenValue); err != nil {
		s.log.Warn("failed to drop verification token index", zap.Error(err))
	}

	s.notifier.SendConfirmation(cfg, b)

	if s.metrics != nil {
		s.metrics.VerificationsTotal.Inc()
	}
	s.log.Info("beneficiary verified",
		zap.String("owner_id", ref.OwnerID),
		zap.String("beneficiary_id", b.ID),
	)
	return b, nil
}

// ResendVerification 为 pending 受益人重新签发 14 天令牌并重发验证邮件。
func (s *BeneficiaryService) ResendVerification(ownerID, beneficiaryID string) error {
	cfg, err := s.store.GetConfig(ownerID)
	if err != nil {
		return err
	}

	b := cfg.FindBeneficiary(beneficiaryID)
	if b == nil {
		return ErrBeneficiaryNotFound
	}
	if b.Status != domain.StatusPending {
		return ErrInvalidState
	}

	s.rearmToken(b)
	if err := s.configs.Save(cfg); err != nil {
		return err
	}
	if err := s.store.SaveVerifyTokenRef(&domain.VerifyTokenRef{
		Token:         b.VerificationToken,
		OwnerID:       ownerID,
		BeneficiaryID: b.ID,
	}); err != nil {
		s.log.Error("failed to index verification token", zap.Error(err))
	}
	s.notifier.SendVerification(cfg, b)
	return nil
}

// UpdateEmail 修改受益人邮箱并强制重新验证。
// 旧邮箱写入只追加的变更历史；verified 状态被重置为 pending。
func (s *BeneficiaryService) UpdateEmail(ownerID, beneficiaryID, newEmail string) error {
	cfg, err := s.store.GetConfig(ownerID)
	if err != nil {
		return err
	}

	b := cfg.FindBeneficiary(beneficiaryID)
	if b == nil {
		return ErrBeneficiaryNotFound
	}
	if b.Status == domain.StatusRevoked {
		return ErrInvalidState
	}

	email := strings.ToLower(strings.TrimSpace(newEmail))
	if email == strings.ToLower(strings.TrimSpace(cfg.OwnerEmail)) {
		return ErrSelfDesignation
	}
	if existing := cfg.ActiveBeneficiaryByEmail(email); existing != nil && existing.ID != b.ID {
		return ErrDuplicateBeneficiary
	}

	now := s.now()
	b.EmailHistory = append(b.EmailHistory, domain.EmailChange{
		OldEmail:  b.Email,
		NewEmail:  email,
		ChangedAt: now,
	})
	b.Email = email
	b.Status = domain.StatusPending
	b.VerifiedAt = nil
	s.rearmToken(b)

	if err := s.configs.Save(cfg); err != nil {
		return err
	}
	if err := s.store.SaveVerifyTokenRef(&domain.VerifyTokenRef{
		Token:         b.VerificationToken,
		OwnerID:       ownerID,
		BeneficiaryID: b.ID,
	}); err != nil {
		s.log.Error("failed to index verification token", zap.Error(err))
	}
	s.notifier.SendVerification(cfg, b)
	return nil
}

// rearmToken 换发 14 天手动令牌，旧令牌的索引一并废弃。
func (s *BeneficiaryService) rearmToken(b *domain.Beneficiary) {
	if b.VerificationToken != "" {
		if err := s.store.DeleteVerifyTokenRef(b.VerificationToken); err != nil {
			s.log.Warn("failed to drop verification token index", zap.Error(err))
		}
	}

	now := s.now()
	expires := now.Add(manualTokenTTL)
	b.VerificationToken = token.New()
	b.TokenExpiresAt = &expires
	b.NotificationContext = domain.ContextManual
	b.NotificationSentAt = &now
}
