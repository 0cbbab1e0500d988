package v1

import (
	"context"
	"net/http"

	"captions/internal/domain/usecase"

	"github.com/gin-gonic/gin"
)

type UploadUseCase interface {
	Presign(ctx context.Context, req usecase.PresignRequest) (*usecase.PresignResult, error)
}

type UploadHandler struct {
	Uploads UploadUseCase
}

func NewUploadHandler(u UploadUseCase) *UploadHandler {
	return &UploadHandler{Uploads: u}
}

func (h *UploadHandler) Presign(c *gin.Context) {
	var req usecase.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	res, err := h.Uploads.Presign(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, res)
}
