package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-lease/internal/pkg/logger"
)

const adminSecretParam = "secret"

// AdminAuth は管理者トークンを検証するミドルウェア。
// Authorization: Bearer <token> または ?secret=<token> を受け付ける。
// token が空の場合は全てのリクエストを拒否する。
func AdminAuth(token string) echo.MiddlewareFunc {
	expected := []byte(token)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			given := adminCredential(c.Request())
			if len(expected) == 0 || given == "" ||
				subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
				logger.Warn("管理者認証に失敗",
					zap.String("path", c.Request().URL.Path),
					zap.String("remote_ip", c.RealIP()),
				)
				return echo.NewHTTPError(http.StatusUnauthorized, "管理者認証が必要です")
			}
			return next(c)
		}
	}
}

func adminCredential(req *http.Request) string {
	if auth := req.Header.Get(echo.HeaderAuthorization); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
		return ""
	}
	return req.URL.Query().Get(adminSecretParam)
}
