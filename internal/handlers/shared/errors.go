package handlers

import (
	"net/http"

	"ridemate/internal/services"
	"ridemate/internal/utils"
	"ridemate/internal/validators"
	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindAuthorization: http.StatusForbidden,
	services.KindNotFound:      http.StatusNotFound,
	services.KindCapacity:      http.StatusConflict,
	services.KindConflict:      http.StatusConflict,
}

// respondError renders a service error. Errors without a kind are logged and
// hidden behind a generic 500.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if appErr, ok := services.AsAppError(err); ok {
		if status, known := kindStatus[appErr.Kind]; known {
			utils.ErrorResponseWithDetails(c, status, string(appErr.Kind), appErr.Message, appErr.Details)
			return
		}
	}

	log.WithRequestID(c.GetString("request_id")).WithError(err).
		WithField("endpoint", c.FullPath()).Error("Request failed")
	utils.InternalServerErrorResponse(c)
}

func respondValidation(c *gin.Context, errs validators.ValidationErrors) {
	details := make(map[string]interface{}, len(errs))
	for _, e := range errs {
		details[e.Field] = e.Message
	}
	utils.ErrorResponseWithDetails(c, http.StatusBadRequest, string(services.KindValidation), errs.First(), details)
}

func objectIDParam(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+label+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}
