package httpapi

import (
	"net/http"

	siteAuth "github.com/MrEthical07/siteAuth"
	"github.com/labstack/echo/v4"
)

var statusByCode = map[siteAuth.ErrorCode]int{
	siteAuth.CodeInvalidCredentials: http.StatusUnauthorized,
	siteAuth.CodeAccountInactive:    http.StatusForbidden,
	siteAuth.CodeNoChallenge:        http.StatusBadRequest,
	siteAuth.CodeChallengeExpired:   http.StatusBadRequest,
	siteAuth.CodeCodeMismatch:       http.StatusBadRequest,
	siteAuth.CodeTooManyAttempts:    http.StatusTooManyRequests,
	siteAuth.CodeRefreshRevoked:     http.StatusUnauthorized,
	siteAuth.CodeTokenInvalid:       http.StatusUnauthorized,
	siteAuth.CodeUnauthorized:       http.StatusUnauthorized,
	siteAuth.CodeRateLimited:        http.StatusTooManyRequests,
	siteAuth.CodeAccountExists:      http.StatusConflict,
	siteAuth.CodeLinkInvalid:        http.StatusBadRequest,
	siteAuth.CodePasswordPolicy:     http.StatusBadRequest,
	siteAuth.CodeInvalidInput:       http.StatusBadRequest,
	siteAuth.CodeUnavailable:        http.StatusServiceUnavailable,
}

// StatusOf maps an engine error to an HTTP status.
func StatusOf(err error) int {
	if status, ok := statusByCode[siteAuth.ErrorCodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorResp struct {
	Code    siteAuth.ErrorCode `json:"code"`
	Message string             `json:"message"`
}

func writeError(c echo.Context, err error) error {
	code := siteAuth.ErrorCodeOf(err)
	if code == siteAuth.CodeInternal || code == siteAuth.CodeUnavailable {
		c.Logger().Error(err)
	}
	return c.JSON(StatusOf(err), errorResp{Code: code, Message: code.Message()})
}
