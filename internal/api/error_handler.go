package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/application"
	"github.com/sanosuguru/go-seat-lease/internal/domain/seat"
	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// HTTPStatus はサービス層のエラーをHTTPステータスに変換する
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case seat.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, seat.ErrSeatNotFound):
		return http.StatusNotFound
	case seat.IsConflict(err), errors.Is(err, application.ErrSeatBusy):
		return http.StatusConflict
	case errors.Is(err, seat.ErrStoreUnavailable), errors.Is(err, application.ErrFeedNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := HTTPStatus(err)
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if code == http.StatusInternalServerError {
		message = "内部サーバーエラー"
	}

	// 5xx はログに残す
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Error: message, Code: code})
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
