package controller

import (
	"net/http"
	"time"

	"timezone-scheduler/core/errors"
	"timezone-scheduler/core/logger"

	"github.com/labstack/echo/v4"
)

// Response types
type (
	SuccessResponse struct {
		Status    int       `json:"status"`
		Message   string    `json:"message"`
		Data      any       `json:"data,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}

	ErrorResponse struct {
		Status    string           `json:"status"`
		Code      errors.ErrorCode `json:"code"`
		Message   string           `json:"message"`
		Details   any              `json:"details,omitempty"`
		Timestamp time.Time        `json:"timestamp"`
	}

	// ActionResponse is the envelope every dispatch action returns.
	ActionResponse struct {
		Success   bool             `json:"success"`
		Data      any              `json:"data,omitempty"`
		Message   string           `json:"message,omitempty"`
		Code      errors.ErrorCode `json:"code,omitempty"`
		Retryable bool             `json:"retryable,omitempty"`
	}
)

// Response handler interface and implementation
type BaseController interface {
	BadRequest(appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError
	Unauthorized(appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError
	Forbidden(appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError
	SuccessResponse(c echo.Context, data any, message string) error
	ErrorResponse(c echo.Context, err error) error
	ActionSuccess(c echo.Context, data any) error
	ActionFailure(c echo.Context, action string, err error) error
}

type responseHandler struct{}

func NewBaseController() BaseController {
	return &responseHandler{}
}

// Success response functions
func NewSuccessResponse(httpStatusCode int, data any, message string) *SuccessResponse {
	return &SuccessResponse{
		Status:    httpStatusCode,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// Error response functions
func NewErrorResponse(httpStatusCode int, appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError {
	err := &ErrorResponse{
		Status:    "error",
		Code:      appErrCode,
		Message:   message,
		Timestamp: time.Now(),
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return echo.NewHTTPError(httpStatusCode, err)
}

// HTTP Error handlers
func (h *responseHandler) BadRequest(appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError {
	return NewErrorResponse(http.StatusBadRequest, appErrCode, message, details...)
}

func (h *responseHandler) Unauthorized(appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError {
	return NewErrorResponse(http.StatusUnauthorized, appErrCode, message, details...)
}

func (h *responseHandler) Forbidden(appErrCode errors.ErrorCode, message string, details ...any) *echo.HTTPError {
	return NewErrorResponse(http.StatusForbidden, appErrCode, message, details...)
}

func (h *responseHandler) SuccessResponse(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, data, message))
}

func (h *responseHandler) ErrorResponse(c echo.Context, err error) error {
	httpStatus := http.StatusInternalServerError
	appCode := errors.ErrInternalServer
	msg := "internal server error"

	if ae, ok := errors.AsAppError(err); ok {
		appCode = ae.Code
		if ae.Message != "" {
			msg = ae.Message
		}
		httpStatus = StatusFor(ae)
	}

	logger.Error("BaseController:ErrorResponse",
		"status", httpStatus,
		"code", appCode,
		"message", msg,
		"error", err,
	)
	return c.JSON(httpStatus, NewErrorResponse(httpStatus, appCode, msg))
}

// ActionSuccess writes {success: true, data}.
func (h *responseHandler) ActionSuccess(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, ActionResponse{Success: true, Data: data})
}

// ActionFailure writes {success: false, message}. Domain errors expose their message;
// anything else is logged in full and reported generically.
func (h *responseHandler) ActionFailure(c echo.Context, action string, err error) error {
	resp := ActionResponse{
		Success: false,
		Code:    errors.ErrInternalServer,
		Message: "An unexpected error occurred. Please try again later.",
	}
	status := http.StatusInternalServerError

	if ae, ok := errors.AsAppError(err); ok && ae.Kind() != errors.KindInternal {
		resp.Code = ae.Code
		resp.Message = ae.Message
		resp.Retryable = ae.Retryable()
		status = StatusFor(ae)
		logger.Warn("BaseController:ActionFailure", "action", action, "code", ae.Code, "error", err)
	} else {
		logger.Error("BaseController:ActionFailure", "action", action, "error", err)
	}
	return c.JSON(status, resp)
}

// StatusFor maps an application error to its HTTP status.
func StatusFor(ae *errors.AppError) int {
	switch ae.Kind() {
	case errors.KindValidation, errors.KindConfiguration:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindContention:
		return http.StatusConflict
	case errors.KindIntegrity:
		return http.StatusConflict
	case errors.KindStoreWrite:
		return http.StatusBadGateway
	case errors.KindAuthorization:
		switch ae.Code {
		case errors.ErrUnauthorized, errors.ErrTokenExpired, errors.ErrInvalidTokenFormat, errors.ErrMissingAuthorizationHeader:
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
