package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"

	"heritage/backend/internal/domain"
	"heritage/backend/internal/middleware"
	"heritage/backend/internal/service"
)

// LegacyHandler 聚合所有者侧（已认证）的遗产访问操作。
type LegacyHandler struct {
	configs       *service.LegacyConfigService
	beneficiaries *service.BeneficiaryService
	triggers      *service.TriggerService
	unlocks       *service.UnlockService
}

// NewLegacyHandler 创建所有者侧处理器
func NewLegacyHandler(configs *service.LegacyConfigService, beneficiaries *service.BeneficiaryService, triggers *service.TriggerService, unlocks *service.UnlockService) *LegacyHandler {
	return &LegacyHandler{
		configs:       configs,
		beneficiaries: beneficiaries,
		triggers:      triggers,
		unlocks:       unlocks,
	}
}

// beneficiaryResponse 受益人视图。验证令牌绝不出现在 API 响应中。
type beneficiaryResponse struct {
	ID                 string                             `json:"id"`
	Name               string                             `json:"name"`
	Email              string                             `json:"email"`
	Phone              string                             `json:"phone,omitempty"`
	PersonalMessage    string                             `json:"personalMessage,omitempty"`
	FolderPermissions  map[string]domain.FolderPermission `json:"folderPermissions,omitempty"`
	Status             domain.BeneficiaryStatus           `json:"status"`
	NotificationTiming domain.NotificationTiming          `json:"notificationTiming"`
	AddedAt            time.Time                          `json:"addedAt"`
	VerifiedAt         *time.Time                         `json:"verifiedAt,omitempty"`
	RevokedAt          *time.Time                         `json:"revokedAt,omitempty"`
	NotificationSentAt *time.Time                         `json:"notificationSentAt,omitempty"`
	TokenExpiresAt     *time.Time                         `json:"tokenExpiresAt,omitempty"`
	EmailHistory       []domain.EmailChange               `json:"emailHistory,omitempty"`
}

type triggerResponse struct {
	Type              domain.TriggerType `json:"type"`
	InactivityMonths  int                `json:"inactivityMonths,omitempty"`
	ManualUnlockDate  *time.Time         `json:"manualUnlockDate,omitempty"`
	GracePeriodDays   int                `json:"gracePeriodDays"`
	LastActivityAt    time.Time          `json:"lastActivityAt"`
	UnlockScheduledAt *time.Time         `json:"unlockScheduledAt,omitempty"`
	UnlockTriggeredAt *time.Time         `json:"unlockTriggeredAt,omitempty"`
}

type configResponse struct {
	OwnerID       string                `json:"ownerId"`
	Beneficiaries []beneficiaryResponse `json:"beneficiaries"`
	Trigger       triggerResponse       `json:"trigger"`
	Security      domain.SecurityFlags  `json:"security"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// getConfig 获取当前所有者的遗产访问配置（首次访问惰性创建）
func (h *LegacyHandler) getConfig(c *gin.Context) {
	ownerID, ownerEmail := middleware.OwnerIdentity(c)

	cfg, err := h.configs.GetOrCreate(ownerID, ownerEmail)
	if err != nil {
		InternalError(c, MsgConfigGetFailed)
		return
	}
	Success(c, toConfigResponse(cfg))
}

// deleteConfig 删除配置记录，仅账户删除流程调用
func (h *LegacyHandler) deleteConfig(c *gin.Context) {
	ownerID, _ := middleware.OwnerIdentity(c)

	if err := h.configs.Delete(ownerID); err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	NoContent(c)
}

type updateTriggerRequest struct {
	Type             domain.TriggerType `json:"type" binding:"required"`
	InactivityMonths int                `json:"inactivityMonths"`
	ManualUnlockDate *time.Time         `json:"manualUnlockDate"`
}

// updateTrigger 更新触发器配置
func (h *LegacyHandler) updateTrigger(c *gin.Context) {
	var req updateTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	ownerID, ownerEmail := middleware.OwnerIdentity(c)
	cfg, err := h.triggers.UpdateTrigger(ownerID, ownerEmail, service.UpdateTriggerInput{
		Type:             req.Type,
		InactivityMonths: req.InactivityMonths,
		ManualUnlockDate: req.ManualUnlockDate,
	})
	if err != nil {
		if err == service.ErrInvalidTrigger {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		InternalError(c, MsgTriggerUpdateFailed)
		return
	}
	Success(c, toConfigResponse(cfg))
}

// recordActivity 记录账户活动心跳，取消进行中的宽限期
func (h *LegacyHandler) recordActivity(c *gin.Context) {
	ownerID, ownerEmail := middleware.OwnerIdentity(c)

	cfg, err := h.triggers.RecordActivity(ownerID, ownerEmail)
	if err != nil {
		InternalError(c, MsgActivityRecordFailed)
		return
	}
	Success(c, toConfigResponse(cfg))
}

// triggerUnlock 所有者主动触发解锁（终末安排）
func (h *LegacyHandler) triggerUnlock(c *gin.Context) {
	ownerID, ownerEmail := middleware.OwnerIdentity(c)

	if err := h.unlocks.TriggerUserUnlock(ownerID, ownerEmail); err != nil {
		InternalError(c, MsgUnlockFailed)
		return
	}
	SuccessWithMsg(c, "解锁已触发", nil)
}

// listTokens 列出名下已签发的解锁令牌（审计视图）
func (h *LegacyHandler) listTokens(c *gin.Context) {
	ownerID, _ := middleware.OwnerIdentity(c)

	tokens, err := h.unlocks.ListTokens(ownerID)
	if err != nil {
		InternalError(c, MsgTokenListFailed)
		return
	}
	Success(c, gin.H{
		"items": tokens,
		"count": len(tokens),
	})
}

type addBeneficiaryRequest struct {
	Name               string                             `json:"name" binding:"required"`
	Email              string                             `json:"email" binding:"required,email"`
	Phone              string                             `json:"phone"`
	PersonalMessage    string                             `json:"personalMessage"`
	FolderPermissions  map[string]domain.FolderPermission `json:"folderPermissions"`
	NotificationTiming domain.NotificationTiming          `json:"notificationTiming"`
}

// addBeneficiary 添加受益人
func (h *LegacyHandler) addBeneficiary(c *gin.Context) {
	var req addBeneficiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	ownerID, ownerEmail := middleware.OwnerIdentity(c)
	b, err := h.beneficiaries.Add(ownerID, ownerEmail, service.AddBeneficiaryInput{
		Name:               req.Name,
		Email:              req.Email,
		Phone:              req.Phone,
		PersonalMessage:    req.PersonalMessage,
		FolderPermissions:  req.FolderPermissions,
		NotificationTiming: req.NotificationTiming,
	})
	if err != nil {
		switch err {
		case service.ErrSelfDesignation:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrDuplicateBeneficiary:
			Conflict(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgBeneficiaryAddFailed)
		}
		return
	}
	Created(c, toBeneficiaryResponse(b))
}

// listBeneficiaries 列出全部受益人（含已撤销）
func (h *LegacyHandler) listBeneficiaries(c *gin.Context) {
	ownerID, ownerEmail := middleware.OwnerIdentity(c)

	list, err := h.beneficiaries.List(ownerID, ownerEmail)
	if err != nil {
		InternalError(c, MsgBeneficiaryListFailed)
		return
	}

	items := make([]beneficiaryResponse, 0, len(list))
	for i := range list {
		items = append(items, toBeneficiaryResponse(&list[i]))
	}
	Success(c, gin.H{
		"items": items,
		"count": len(items),
	})
}

// removeBeneficiary 撤销受益人
func (h *LegacyHandler) removeBeneficiary(c *gin.Context) {
	ownerID, _ := middleware.OwnerIdentity(c)

	err := h.beneficiaries.Remove(ownerID, c.Param("id"))
	if err != nil {
		switch err {
		case service.ErrBeneficiaryNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrInvalidState:
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgInternalError)
		}
		return
	}
	NoContent(c)
}

// notifyBeneficiary 手动通知 pending_unlock 受益人
func (h *LegacyHandler) notifyBeneficiary(c *gin.Context) {
	ownerID, _ := middleware.OwnerIdentity(c)

	err := h.beneficiaries.SendNotification(ownerID, c.Param("id"))
	if err != nil {
		switch err {
		case service.ErrBeneficiaryNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrInvalidState:
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgNotifyFailed)
		}
		return
	}
	SuccessWithMsg(c, "通知已发送", nil)
}

// resendVerification 为 pending 受益人重发验证邮件
func (h *LegacyHandler) resendVerification(c *gin.Context) {
	ownerID, _ := middleware.OwnerIdentity(c)

	err := h.beneficiaries.ResendVerification(ownerID, c.Param("id"))
	if err != nil {
		switch err {
		case service.ErrBeneficiaryNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrInvalidState:
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgNotifyFailed)
		}
		return
	}
	SuccessWithMsg(c, "验证邮件已重发", nil)
}

type updateEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// updateBeneficiaryEmail 修改受益人邮箱并强制重新验证
func (h *LegacyHandler) updateBeneficiaryEmail(c *gin.Context) {
	var req updateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	ownerID, _ := middleware.OwnerIdentity(c)
	err := h.beneficiaries.UpdateEmail(ownerID, c.Param("id"), req.Email)
	if err != nil {
		switch err {
		case service.ErrBeneficiaryNotFound:
			NotFound(c, GetErrorMessage(err))
		case service.ErrSelfDesignation:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrDuplicateBeneficiary:
			Conflict(c, GetErrorMessage(err))
		case service.ErrInvalidState:
			UnprocessableEntity(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgInternalError)
		}
		return
	}
	SuccessWithMsg(c, "邮箱已更新，需重新验证", nil)
}

// toBeneficiaryResponse 转换受益人实体为响应体，剥离验证令牌。
func toBeneficiaryResponse(b *domain.Beneficiary) beneficiaryResponse {
	return beneficiaryResponse{
		ID:                 b.ID,
		Name:               b.Name,
		Email:              b.Email,
		Phone:              b.Phone,
		PersonalMessage:    b.PersonalMessage,
		FolderPermissions:  b.FolderPermissions,
		Status:             b.Status,
		NotificationTiming: b.NotificationTiming,
		AddedAt:            b.AddedAt,
		VerifiedAt:         b.VerifiedAt,
		RevokedAt:          b.RevokedAt,
		NotificationSentAt: b.NotificationSentAt,
		TokenExpiresAt:     b.TokenExpiresAt,
		EmailHistory:       b.EmailHistory,
	}
}

// toConfigResponse 转换配置实体为响应体。
// 调度细节（取消令牌、警告时间）不对外暴露。
func toConfigResponse(cfg *domain.LegacyConfig) configResponse {
	items := make([]beneficiaryResponse, 0, len(cfg.Beneficiaries))
	for i := range cfg.Beneficiaries {
		items = append(items, toBeneficiaryResponse(&cfg.Beneficiaries[i]))
	}
	return configResponse{
		OwnerID:       cfg.OwnerID,
		Beneficiaries: items,
		Trigger: triggerResponse{
			Type:              cfg.Trigger.Type,
			InactivityMonths:  cfg.Trigger.InactivityMonths,
			ManualUnlockDate:  cfg.Trigger.ManualUnlockDate,
			GracePeriodDays:   cfg.Trigger.GracePeriodDays,
			LastActivityAt:    cfg.Trigger.LastActivityAt,
			UnlockScheduledAt: cfg.Trigger.UnlockScheduledAt,
			UnlockTriggeredAt: cfg.Trigger.UnlockTriggeredAt,
		},
		Security:  cfg.Security,
		CreatedAt: cfg.CreatedAt,
		UpdatedAt: cfg.UpdatedAt,
	}
}
