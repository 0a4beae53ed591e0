package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/deploy"
	"github.com/dropdeploy/dropdeploy/internal/store"
	"github.com/dropdeploy/dropdeploy/internal/terminal"
)

// ErrorResponse represents a simple error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleError maps typed errors onto HTTP status codes. Internal details are
// logged, never leaked.
func handleError(c *gin.Context, err error) {
	var notAllowed *terminal.NotAllowedError
	var unknownShortcut *terminal.UnknownShortcutError

	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, store.ErrSlugTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slug already in use"})
	case errors.As(err, &notAllowed), errors.As(err, &unknownShortcut):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, terminal.ErrTimeout):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, terminal.ErrContainerNotFound):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		handleDeployError(c, err)
	}
}

func handleDeployError(c *gin.Context, err error) {
	switch deploy.KindOf(err) {
	case deploy.KindNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case deploy.KindValidation:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case deploy.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
