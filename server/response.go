package server

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/speechgate/errors"
)

// RespondWithError writes err in the gateway's error envelope. An
// *apperrors.AppError supplies its own status and body; anything else is
// a 500 INTERNAL_ERROR.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
