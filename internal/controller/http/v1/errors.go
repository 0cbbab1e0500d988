package v1

import (
	"errors"
	"net/http"

	"captions/internal/domain/entity"
	"captions/internal/domain/usecase"

	"github.com/gin-gonic/gin"
)

// writeError maps err to a status code. invalidStatus is used for
// rejected transitions, whose meaning differs per route.
func writeError(c *gin.Context, err error, invalidStatus int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidTransition):
		status = invalidStatus
	case errors.Is(err, entity.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrDispatchFailed):
		status = http.StatusBadGateway
	case errors.Is(err, usecase.ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
