package httpserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/tenancy-engine/internal/core/domain/apperr"
	"github.com/avatarctic/tenancy-engine/internal/utils"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindThrottling:
		return http.StatusTooManyRequests
	case apperr.KindTransientConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.ErrInvalidRequest.Code
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return apperr.ErrRateLimited.Code
	}
	if status >= 500 {
		return apperr.ErrInternal.Code
	}
	return "HTTP_" + strconv.Itoa(status)
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := s.describeError(err)
	if ae, ok := apperr.As(err); ok && ae.Kind.Retryable() {
		secs := int(math.Ceil(ae.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil && s.logger != nil {
		s.logger.WithError(werr).Warn("failed to write error response")
	}
}

func (s *Server) describeError(err error) (int, ErrorResponse) {
	if ae, ok := apperr.As(err); ok {
		status := StatusFor(ae.Kind)
		if status == http.StatusInternalServerError && ae.Kind == apperr.KindInternal {
			s.logInternal(err)
			return status, ErrorResponse{Code: apperr.ErrInternal.Code, Message: apperr.ErrInternal.Message}
		}
		return status, ErrorResponse{Code: ae.Code, Message: ae.Message}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ErrorResponse{Code: apperr.ErrInvalidRequest.Code, Message: utils.ValidationMessage(verrs)}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return he.Code, ErrorResponse{Code: httpErrorCode(he.Code), Message: msg}
	}

	s.logInternal(err)
	return http.StatusInternalServerError, ErrorResponse{Code: apperr.ErrInternal.Code, Message: apperr.ErrInternal.Message}
}

func (s *Server) logInternal(err error) {
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"error": err.Error()}).Error("unhandled error")
	}
}
