package v1

import (
	"context"
	"net/http"

	"captions/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

type JobUseCase interface {
	CreateJob(ctx context.Context) (*entity.Job, error)
	GetJob(ctx context.Context, jobID string) (*entity.Job, error)
	UpdateJob(ctx context.Context, jobID string, req entity.PatchRequest) (*entity.Job, error)
}

type DispatchUseCase interface {
	Dispatch(ctx context.Context, jobID string) error
}

type JobHandler struct {
	Jobs     JobUseCase
	Dispatch DispatchUseCase
}

func NewJobHandler(jobs JobUseCase, dispatch DispatchUseCase) *JobHandler {
	return &JobHandler{Jobs: jobs, Dispatch: dispatch}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	job, err := h.Jobs.CreateJob(c.Request.Context())
	if err != nil {
		writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.Jobs.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, job)
}

// UpdateJob applies a sparse patch. Fields other than status, stage,
// inputKey, outputKey and error are ignored.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	var req entity.PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	job, err := h.Jobs.UpdateJob(c.Request.Context(), c.Param("job_id"), req)
	if err != nil {
		writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) StartJob(c *gin.Context) {
	if err := h.Dispatch.Dispatch(c.Request.Context(), c.Param("job_id")); err != nil {
		writeError(c, err, http.StatusConflict)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
