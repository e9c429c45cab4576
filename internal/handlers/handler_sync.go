package handlers

import (
	"net/http"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
	portssvc "github.com/SscSPs/brokerage_sync_app/internal/core/ports/services"
	"github.com/SscSPs/brokerage_sync_app/internal/dto"
	"github.com/gin-gonic/gin"
)

// SyncHandler exposes the sync engine over HTTP for external schedulers.
type SyncHandler struct {
	orchestrator portssvc.SyncOrchestratorSvc
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(orchestrator portssvc.SyncOrchestratorSvc) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator}
}

// TriggerSync runs one full sync and returns the run report. The run executes
// synchronously; schedulers get the outcome in the response body.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	run := h.orchestrator.Run(c.Request.Context())
	c.JSON(statusCodeFor(run.Status), dto.ToRunReport(run))
}

func statusCodeFor(status domain.RunStatus) int {
	switch status {
	case domain.RunSuccess:
		return http.StatusOK
	case domain.RunPartial:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}
