package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// jobHandler handles HTTP requests for jobs and their escrow.
type jobHandler struct {
	jobService    portssvc.JobSvcFacade
	escrowService portssvc.EscrowSvcFacade
}

// newJobHandler creates a new jobHandler.
func newJobHandler(jobService portssvc.JobSvcFacade, escrowService portssvc.EscrowSvcFacade) *jobHandler {
	return &jobHandler{
		jobService:    jobService,
		escrowService: escrowService,
	}
}

// registerJobRoutes registers routes related to jobs.
func registerJobRoutes(rg *gin.RouterGroup, jobService portssvc.JobSvcFacade, escrowService portssvc.EscrowSvcFacade) {
	h := newJobHandler(jobService, escrowService)

	jobs := rg.Group("/jobs")
	{
		jobs.POST("", h.createJob)
		jobs.GET("", h.listJobs)
		jobs.GET("/:jobID", h.getJob)
		jobs.PATCH("/:jobID", h.updateJob)
		jobs.POST("/:jobID/transitions", h.transitionJob)
		jobs.GET("/:jobID/transactions", h.listJobTransactions)
		jobs.POST("/:jobID/dispute", h.fileDispute)
		jobs.POST("/:jobID/dispute/resolve", middleware.RequireRoles(domain.RoleAdmin), h.resolveDispute)
		jobs.POST("/:jobID/settle", middleware.RequireRoles(domain.RoleAdmin, domain.RoleSystem), h.settleJob)
	}
}

// createJob godoc
// @Summary Create a new job
// @Description Creates a pending job owned by the authenticated seller
// @Tags jobs
// @Accept json
// @Produce json
// @Param job body dto.CreateJobRequest true "Job details"
// @Success 201 {object} dto.JobResponse
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Only sellers create jobs"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs [post]
func (h *jobHandler) createJob(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for createJob", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	job, err := h.jobService.CreateJob(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err, "Failed to create job")
		return
	}

	c.JSON(http.StatusCreated, dto.ToJobResponse(job))
}

// listJobs godoc
// @Summary List jobs
// @Description Lists the caller's jobs, newest first, as seller or as contractor
// @Tags jobs
// @Produce json
// @Param as query string false "seller or contractor" default(seller)
// @Param limit query int false "Page size" default(20)
// @Param nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListJobsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs [get]
func (h *jobHandler) listJobs(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ListJobsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query for listJobs", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	jobs, next, err := h.jobService.ListJobs(c.Request.Context(), params, actor)
	if err != nil {
		respondError(c, err, "Failed to list jobs")
		return
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:      dto.ToListJobResponse(jobs),
		NextToken: next,
	})
}

// getJob godoc
// @Summary Get a job by ID
// @Tags jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} dto.JobResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID} [get]
func (h *jobHandler) getJob(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("jobID"), actor)
	if err != nil {
		respondError(c, err, "Failed to retrieve job")
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// updateJob godoc
// @Summary Update job details
// @Description Patches non-status fields of a job. The version must match the stored job.
// @Tags jobs
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param job body dto.UpdateJobRequest true "Fields to update"
// @Success 200 {object} dto.JobResponse
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Job was modified concurrently"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID} [patch]
func (h *jobHandler) updateJob(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for updateJob", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	job, err := h.jobService.UpdateJob(c.Request.Context(), c.Param("jobID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to update job")
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// transitionJob godoc
// @Summary Move a job to another status
// @Description Applies a lifecycle transition. Assignment holds escrow, completion schedules payment and cancellation refunds.
// @Tags jobs
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param transition body dto.TransitionJobRequest true "Target status"
// @Success 200 {object} dto.JobResponse
// @Failure 400 {object} map[string]string "Invalid request format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 402 {object} map[string]string "Seller balance too low for escrow"
// @Failure 403 {object} map[string]string "Actor may not perform this transition"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Illegal transition or concurrent modification"
// @Failure 423 {object} map[string]string "Collaboration locked"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID}/transitions [post]
func (h *jobHandler) transitionJob(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.TransitionJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for transitionJob", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	job, err := h.jobService.TransitionJob(c.Request.Context(), c.Param("jobID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to transition job")
		return
	}

	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// listJobTransactions godoc
// @Summary List the ledger movements of a job
// @Tags jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {array} dto.TransactionResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID}/transactions [get]
func (h *jobHandler) listJobTransactions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	txs, err := h.escrowService.ListJobTransactions(c.Request.Context(), c.Param("jobID"), actor)
	if err != nil {
		respondError(c, err, "Failed to list job transactions")
		return
	}

	c.JSON(http.StatusOK, dto.ToListTransactionResponse(txs))
}

// fileDispute godoc
// @Summary Dispute a completed job
// @Description Opens a dispute inside the settlement window. Settlement is held until it is resolved.
// @Tags escrow
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param dispute body dto.FileDisputeRequest true "Dispute reason"
// @Success 200 {object} dto.JobResponse
// @Failure 400 {object} map[string]string "Invalid request or window elapsed"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Dispute already open"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID}/dispute [post]
func (h *jobHandler) fileDispute(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.FileDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for fileDispute", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	job, err := h.escrowService.FileDispute(c.Request.Context(), c.Param("jobID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to file dispute")
		return
	}

	logger.Info("Dispute filed", slog.String("job_id", job.JobID))
	c.JSON(http.StatusOK, dto.ToJobResponse(job))
}

// resolveDispute godoc
// @Summary Resolve an open dispute
// @Description Refunds the seller or releases the payments to the contractors
// @Tags escrow
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param decision body dto.ResolveDisputeRequest true "Ruling"
// @Success 200 {object} dto.SettlementResponse
// @Failure 400 {object} map[string]string "Invalid request format"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admins only"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID}/dispute/resolve [post]
func (h *jobHandler) resolveDispute(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for resolveDispute", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	res, err := h.escrowService.ResolveDispute(c.Request.Context(), c.Param("jobID"), req, actor)
	if err != nil {
		respondError(c, err, "Failed to resolve dispute")
		return
	}

	c.JSON(http.StatusOK, dto.ToSettlementResponse(res))
}

// settleJob godoc
// @Summary Settle a completed job
// @Description Releases the pending payments of a job whose dispute window has elapsed. Repeating the call settles nothing new.
// @Tags escrow
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} dto.SettlementResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Admins and system only"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Window not elapsed or dispute open"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /jobs/{jobID}/settle [post]
func (h *jobHandler) settleJob(c *gin.Context) {
	res, err := h.escrowService.TrySettle(c.Request.Context(), c.Param("jobID"))
	if err != nil {
		respondError(c, err, "Failed to settle job")
		return
	}

	c.JSON(http.StatusOK, dto.ToSettlementResponse(res))
}
