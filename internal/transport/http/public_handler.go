package httptransport

import (
	"github.com/gin-gonic/gin"

	"heritage/backend/internal/service"
)

// PublicHandler 聚合受益人侧（无需认证）的公开端点。
// 这些端点的唯一凭证是邮件链接中的令牌，失败响应刻意保持模糊。
type PublicHandler struct {
	beneficiaries *service.BeneficiaryService
	triggers      *service.TriggerService
	unlocks       *service.UnlockService
}

// NewPublicHandler 创建公开端点处理器
func NewPublicHandler(beneficiaries *service.BeneficiaryService, triggers *service.TriggerService, unlocks *service.UnlockService) *PublicHandler {
	return &PublicHandler{
		beneficiaries: beneficiaries,
		triggers:      triggers,
		unlocks:       unlocks,
	}
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// verify 受益人通过邮件链接确认身份
func (h *PublicHandler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	b, err := h.beneficiaries.Verify(req.Token)
	if err != nil {
		switch err {
		case service.ErrTokenExpired:
			Gone(c, MsgTokenExpired)
		case service.ErrTokenNotFound:
			NotFound(c, MsgLinkInvalidOrExpired)
		default:
			InternalError(c, MsgInternalError)
		}
		return
	}

	SuccessWithMsg(c, "验证成功", gin.H{
		"name":       b.Name,
		"verifiedAt": b.VerifiedAt,
	})
}

type cancelUnlockRequest struct {
	Token string `json:"token" binding:"required"`
}

// cancelUnlock 所有者通过警告邮件中的链接取消已调度的解锁
func (h *PublicHandler) cancelUnlock(c *gin.Context) {
	var req cancelUnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.triggers.CancelScheduledUnlock(req.Token); err != nil {
		if err == service.ErrTokenNotFound {
			NotFound(c, MsgLinkInvalidOrExpired)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	SuccessWithMsg(c, "解锁已取消，账户活动计时已重置", nil)
}

// redeemUnlockToken 受益人兑换解锁令牌，获取访问授权
func (h *PublicHandler) redeemUnlockToken(c *gin.Context) {
	grant, err := h.unlocks.ValidateUnlockToken(c.Param("tokenId"))
	if err != nil {
		switch err {
		case service.ErrTokenNotFound, service.ErrTokenExpired:
			NotFound(c, MsgLinkInvalidOrExpired)
		default:
			InternalError(c, MsgInternalError)
		}
		return
	}

	Success(c, grant)
}
