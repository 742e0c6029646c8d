package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/promotion-vote/internal/service"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ToAPIError 把领域错误映射为 HTTP 错误
func ToAPIError(err error) *APIError {
	var (
		apiErr         *APIError
		validationErr  *service.ValidationError
		eligibilityErr *service.EligibilityError
		campaignErr    *service.CampaignStateError
		duplicateErr   *service.DuplicateVoteError
		stateErr       *service.StateError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validationErr):
		return &APIError{Code: http.StatusBadRequest, Message: "invalid request", Detail: err.Error()}
	case errors.Is(err, service.ErrCampaignNotFound),
		errors.Is(err, service.ErrAppealNotFound),
		errors.Is(err, service.ErrVoteNotFound):
		return &APIError{Code: http.StatusNotFound, Message: "not found", Detail: err.Error()}
	// 申诉资格错误可能同时包含活动状态错误,需先匹配
	case errors.As(err, &eligibilityErr):
		return &APIError{Code: http.StatusUnprocessableEntity, Message: string(eligibilityErr.Rule), Detail: err.Error()}
	case errors.As(err, &campaignErr):
		return &APIError{Code: http.StatusConflict, Message: "campaign state conflict", Detail: err.Error()}
	case errors.As(err, &duplicateErr):
		return &APIError{Code: http.StatusConflict, Message: "already voted", Detail: err.Error()}
	case errors.As(err, &stateErr):
		message := "invalid state transition"
		if stateErr.Conflict {
			message = "concurrent modification"
		}
		return &APIError{Code: http.StatusConflict, Message: message, Detail: err.Error()}
	default:
		return &APIError{Code: http.StatusInternalServerError, Message: "internal server error", Detail: err.Error()}
	}
}

// HandleError 直接写出错误响应
func HandleError(c *gin.Context, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Code >= http.StatusInternalServerError {
		// 内部错误不向调用方暴露细节
		GetLogger().WithField("request_id", c.GetString(requestIDKey)).WithError(err).Error("request failed")
		apiErr.Detail = ""
	}
	Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
}
