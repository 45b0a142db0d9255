package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// collaborationHandler handles HTTP requests for job splits.
type collaborationHandler struct {
	collaborationService portssvc.CollaborationSvcFacade
}

func newCollaborationHandler(collaborationService portssvc.CollaborationSvcFacade) *collaborationHandler {
	return &collaborationHandler{collaborationService: collaborationService}
}

// registerCollaborationRoutes registers routes related to collaborations.
func registerCollaborationRoutes(rg *gin.RouterGroup, collaborationService portssvc.CollaborationSvcFacade) {
	h := newCollaborationHandler(collaborationService)

	collabs := rg.Group("/collaborations")
	{
		collabs.POST("", h.createCollaboration)
		collabs.GET("/:collaborationID", h.getCollaboration)
		collabs.PUT("/:collaborationID/tasks", h.updateTasks)
		collabs.POST("/:collaborationID/tasks/:taskID/accept", h.acceptTask)
		collabs.POST("/:collaborationID/tasks/:taskID/complete", h.completeTask)
		collabs.POST("/:collaborationID/cancel", h.cancelCollaboration)
	}
}

// createCollaboration godoc
// @Summary Split an assigned job
// @Description Splits the job among several contractors. Task amounts must add up to the job's final amount.
// @Tags collaborations
// @Accept json
// @Produce json
// @Param collaboration body dto.CreateCollaborationRequest true "Split"
// @Success 201 {object} dto.CollaborationResponse
// @Failure 400 {object} map[string]string "Invalid request or parent not assigned"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Only the assigned contractor may split"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 422 {object} map[string]string "Task amounts do not match"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /collaborations [post]
func (h *collaborationHandler) createCollaboration(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.CreateCollaborationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for createCollaboration", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	collab, err := h.collaborationService.CreateCollaboration(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err, "Failed to create collaboration")
		return
	}

	c.JSON(http.StatusCreated, dto.ToCollaborationResponse(collab))
}

// getCollaboration godoc
// @Summary Get a collaboration
// @Tags collaborations
// @Produce json
// @Param collaborationID path string true "Collaboration ID"
// @Success 200 {object} dto.CollaborationResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Collaboration not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /collaborations/{collaborationID} [get]
func (h *collaborationHandler) getCollaboration(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	collab, err := h.collaborationService.GetCollaboration(c.Request.Context(), c.Param("collaborationID"), actor)
	if err != nil {
		respondError(c, err, "Failed to retrieve collaboration")
		return
	}

	c.JSON(http.StatusOK, dto.ToCollaborationResponse(collab))
}

// updateTasks godoc
// @Summary Replace the tasks of an open collaboration
// @Tags collaborations
// @Accept json
// @Produce json
// @Param collaborationID path string true "Collaboration ID"
// @Param tasks body dto.UpdateCollaborationTasksRequest true "Tasks"
// @Success 200 {object} dto.CollaborationResponse
// @Failure 400 {object} map[string]string "Invalid request format"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 422 {object} map[string]string "Task amounts do not match"
// @Failure 423 {object} map[string]string "Collaboration locked"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /collaborations/{collaborationID}/tasks [put]
func (h *collaborationHandler) updateTasks(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.UpdateCollaborationTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for updateTasks", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	collab, err := h.collaborationService.UpdateTasks(c.Request.Context(), c.Param("collaborationID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to update collaboration tasks")
		return
	}

	c.JSON(http.StatusOK, dto.ToCollaborationResponse(collab))
}

// acceptTask godoc
// @Summary Accept a collaboration task
// @Description Assigns the calling contractor to the task. The collaboration becomes active once every task is taken.
// @Tags collaborations
// @Produce json
// @Param collaborationID path string true "Collaboration ID"
// @Param taskID path string true "Task ID"
// @Success 200 {object} dto.CollaborationResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Contractors only"
// @Failure 404 {object} map[string]string "Collaboration or task not found"
// @Failure 409 {object} map[string]string "Task already taken"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /collaborations/{collaborationID}/tasks/{taskID}/accept [post]
func (h *collaborationHandler) acceptTask(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	collab, err := h.collaborationService.AcceptTask(c.Request.Context(), c.Param("collaborationID"), c.Param("taskID"), actor)
	if err != nil {
		respondError(c, err, "Failed to accept task")
		return
	}

	c.JSON(http.StatusOK, dto.ToCollaborationResponse(collab))
}

// completeTask godoc
// @Summary Complete a collaboration task
// @Description Completing the last task completes the parent job and schedules one payment per task.
// @Tags collaborations
// @Produce json
// @Param collaborationID path string true "Collaboration ID"
// @Param taskID path string true "Task ID"
// @Success 200 {object} dto.CollaborationResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Only the task assignee"
// @Failure 404 {object} map[string]string "Collaboration or task not found"
// @Failure 409 {object} map[string]string "Collaboration not active"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /collaborations/{collaborationID}/tasks/{taskID}/complete [post]
func (h *collaborationHandler) completeTask(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	collab, err := h.collaborationService.CompleteTask(c.Request.Context(), c.Param("collaborationID"), c.Param("taskID"), actor)
	if err != nil {
		respondError(c, err, "Failed to complete task")
		return
	}

	c.JSON(http.StatusOK, dto.ToCollaborationResponse(collab))
}

// cancelCollaboration godoc
// @Summary Withdraw a collaboration
// @Tags collaborations
// @Produce json
// @Param collaborationID path string true "Collaboration ID"
// @Success 200 {object} dto.CollaborationResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Collaboration not found"
// @Failure 423 {object} map[string]string "Collaboration locked"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /collaborations/{collaborationID}/cancel [post]
func (h *collaborationHandler) cancelCollaboration(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	collab, err := h.collaborationService.CancelCollaboration(c.Request.Context(), c.Param("collaborationID"), actor)
	if err != nil {
		respondError(c, err, "Failed to cancel collaboration")
		return
	}

	c.JSON(http.StatusOK, dto.ToCollaborationResponse(collab))
}
