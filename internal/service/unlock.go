package service

import (
	"time"

	"go.uber.org/zap"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/monitoring"
	"heritage/backend/internal/storage"
	"heritage/backend/internal/token"
)

// UnlockService 负责解锁事件的编排：向待验证受益人发起验证、
// 为已验证受益人签发解锁令牌、以及受益人侧的令牌兑换。
type UnlockService struct {
	store    storage.Store
	configs  *LegacyConfigService
	notifier *NotificationService
	metrics  *monitoring.Metrics // 可为 nil（测试）
	log      *zap.Logger
	now      func() time.Time
}

// NewUnlockService 创建解锁服务。
func NewUnlockService(store storage.Store, configs *LegacyConfigService, notifier *NotificationService, metrics *monitoring.Metrics, log *zap.Logger) *UnlockService {
	return &UnlockService{
		store:    store,
		configs:  configs,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow 注入时钟，测试用。
func (s *UnlockService) SetNow(now func() time.Time) {
	s.now = now
}

// Fire 对所有者执行一次解锁事件。
//
// 受益人按状态分流：pending_unlock（延迟验证）获得永不过期的验证
// 令牌并转入 pending；verified 立即获得解锁令牌与权限快照。最后
// 设置 UnlockTriggeredAt，保证事件只发生一次。revoked 与已在验证
// 中的 pending 不受影响。
func (s *UnlockService) Fire(cfg *domain.LegacyConfig, unlockType domain.UnlockType) error {
	now := s.now()

	var refs []*domain.VerifyTokenRef
	var issued []issuedToken
	for i := range cfg.Beneficiaries {
		b := &cfg.Beneficiaries[i]
		switch b.Status {
		case domain.StatusPendingUnlock:
			sent := now
			b.Status = domain.StatusPending
			b.VerificationToken = token.New()
			b.TokenExpiresAt = nil // 解锁上下文的令牌永不过期
			b.NotificationContext = domain.ContextUnlock
			b.NotificationSentAt = &sent
			b.ReminderTier = 0
			refs = append(refs, &domain.VerifyTokenRef{
				Token:         b.VerificationToken,
				OwnerID:       cfg.OwnerID,
				BeneficiaryID: b.ID,
			})

		case domain.StatusVerified:
			t := &domain.UnlockToken{
				TokenID:           token.NewID(),
				UserID:            cfg.OwnerID,
				BeneficiaryID:     b.ID,
				UnlockType:        unlockType,
				CreatedAt:         now,
				ExpiresAt:         now.Add(domain.UnlockTokenLifetime),
				FolderPermissions: b.FolderPermissions,
			}
			if err := s.store.SaveUnlockToken(t); err != nil {
				return err
			}
			issued = append(issued, issuedToken{beneficiary: b, token: t})
		}
	}

	triggered := now
	cfg.Trigger.UnlockTriggeredAt = &triggered
	if err := s.configs.Save(cfg); err != nil {
		return err
	}

	// 状态落盘后再发邮件与写索引，发送失败不回滚事件
	for _, ref := range refs {
		if err := s.store.SaveVerifyTokenRef(ref); err != nil {
			s.log.Error("failed to index verification token", zap.Error(err))
			continue
		}
		if b := cfg.FindBeneficiary(ref.BeneficiaryID); b != nil {
			s.notifier.SendVerification(cfg, b)
		}
	}
	for _, it := range issued {
		s.notifier.SendUnlockNotification(cfg, it.beneficiary, it.token)
	}

	if s.metrics != nil {
		s.metrics.UnlocksTriggered.WithLabelValues(string(unlockType)).Inc()
	}
	s.log.Info("unlock event fired",
		zap.String("owner_id", cfg.OwnerID),
		zap.String("unlock_type", string(unlockType)),
		zap.Int("tokens_issued", len(issued)),
		zap.Int("verifications_started", len(refs)),
	)
	return nil
}

type issuedToken struct {
	beneficiary *domain.Beneficiary
	token       *domain.UnlockToken
}

// TriggerUserUnlock 所有者主动对自己的账户执行解锁（例如终末安排）。
// 已触发过则幂等返回。
func (s *UnlockService) TriggerUserUnlock(ownerID, ownerEmail string) error {
	cfg, err := s.configs.GetOrCreate(ownerID, ownerEmail)
	if err != nil {
		return err
	}
	if cfg.Trigger.UnlockTriggeredAt != nil {
		return nil
	}
	return s.Fire(cfg, domain.UnlockUserTriggered)
}

// UnlockGrant 受益人兑换解锁令牌后获得的访问描述。
type UnlockGrant struct {
	OwnerID           string                             `json:"ownerId"`
	BeneficiaryID     string                             `json:"beneficiaryId"`
	BeneficiaryName   string                             `json:"beneficiaryName"`
	PersonalMessage   string                             `json:"personalMessage,omitempty"`
	FolderPermissions map[string]domain.FolderPermission `json:"folderPermissions,omitempty"`
	UnlockType        domain.UnlockType                  `json:"unlockType"`
	FirstUsedAt       time.Time                          `json:"firstUsedAt"`
}

// ValidateUnlockToken 受益人通过通知邮件中的链接兑换解锁令牌。
//
// UsedAt 只写一次：首次兑换落盘时间戳，之后的兑换返回同一授权，
// 令牌可重复读取。未知与过期令牌对外不区分具体原因。
func (s *UnlockService) ValidateUnlockToken(tokenID string) (*UnlockGrant, error) {
	t, err := s.store.GetUnlockToken(tokenID)
	if err == storage.ErrUnlockTokenNotFound {
		s.countValidation("not_found")
		return nil, ErrTokenNotFound
	}
	if err != nil {
		s.countValidation("error")
		return nil, err
	}

	now := s.now()
	if t.Expired(now) {
		s.countValidation("expired")
		return nil, ErrTokenExpired
	}

	if t.UsedAt == nil {
		used := now
		t.UsedAt = &used
		if err := s.store.SaveUnlockToken(t); err != nil {
			return nil, err
		}
	}

	grant := &UnlockGrant{
		OwnerID:           t.UserID,
		BeneficiaryID:     t.BeneficiaryID,
		FolderPermissions: t.FolderPermissions,
		UnlockType:        t.UnlockType,
		FirstUsedAt:       *t.UsedAt,
	}
	if cfg, err := s.store.GetConfig(t.UserID); err == nil {
		if b := cfg.FindBeneficiary(t.BeneficiaryID); b != nil {
			grant.BeneficiaryName = b.Name
			grant.PersonalMessage = b.PersonalMessage
		}
	}

	s.countValidation("ok")
	return grant, nil
}

// ListTokens 列出所有者名下已签发的解锁令牌（审计视图）。
func (s *UnlockService) ListTokens(ownerID string) ([]*domain.UnlockToken, error) {
	return s.store.ListUnlockTokensByOwner(ownerID)
}

func (s *UnlockService) countValidation(result string) {
	if s.metrics != nil {
		s.metrics.UnlockTokenValidations.WithLabelValues(result).Inc()
	}
}
