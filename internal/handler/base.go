package handler

import (
	"net/http"

	"backoffice/internal/apperror"
	"backoffice/pkg/logger"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError renders any service error with the status its code maps to.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = apperror.NewInternal(err)
	}
	if appErr.Code == apperror.CodeInternal {
		logger.FromContext(c.Request.Context()).Errorw("internal error", "error", err)
	}
	_ = c.Error(err)
	c.JSON(appErr.HTTPStatus, response.Detailed(appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details))
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Detailed(http.StatusBadRequest, apperror.CodeValidation,
		"Invalid request payload: "+err.Error(), nil))
}

// pathID parses a uuid path parameter, writing a 400 when it is malformed.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperror.NewFieldValidation(name, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter.
func queryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apperror.NewFieldValidation(name, "invalid "+name))
		return nil, false
	}
	return &id, true
}
