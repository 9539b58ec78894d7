package httptransport

import (
	"github.com/gin-gonic/gin"

	"heritage/backend/internal/service"
)

// SweepHandler 暴露一次性扫描触发端点，供运维或外部调度器调用。
// 服务自身也按固定间隔运行扫描，这里用于手动补扫。
type SweepHandler struct {
	sweeps *service.SweepService
}

// NewSweepHandler 创建扫描触发处理器
func NewSweepHandler(sweeps *service.SweepService) *SweepHandler {
	return &SweepHandler{sweeps: sweeps}
}

// runInactivitySweep 立即执行一轮不活跃扫描
func (h *SweepHandler) runInactivitySweep(c *gin.Context) {
	summary, err := h.sweeps.InactivitySweep()
	if err != nil {
		InternalError(c, MsgSweepFailed)
		return
	}
	Success(c, summary)
}

// runReminderSweep 立即执行一轮提醒扫描
func (h *SweepHandler) runReminderSweep(c *gin.Context) {
	summary, err := h.sweeps.ReminderSweep()
	if err != nil {
		InternalError(c, MsgSweepFailed)
		return
	}
	Success(c, summary)
}
