// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/astroline/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userIDSlotKey は外側のミドルウェアが認証結果を受け取るための格納先のキー。
var userIDSlotKey = contextKey("user_id_slot")

// TokenVerifier はBearerトークンの検証に必要なインターフェース。
// auth.Serviceが実装する。認証の失敗は*model.APIErrorで返す。
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない、または無効な場合は401 Unauthorizedを返す。
// ユーザーの照会自体に失敗した場合は500を返す。
func NewBearerAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			userID, err := verifier.Authenticate(r.Context(), token)
			var apiErr *model.APIError
			switch {
			case errors.As(err, &apiErr), err == nil && userID == "":
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			case err != nil:
				slog.Error("アクセストークンのユーザー照会に失敗しました", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// bearerToken は"Authorization: Bearer <token>"からトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// 外側にアクセスログミドルウェアがあれば、その格納先にも書き込む。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if slot, ok := ctx.Value(userIDSlotKey).(*string); ok {
		*slot = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

func withUserIDSlot(ctx context.Context, slot *string) context.Context {
	return context.WithValue(ctx, userIDSlotKey, slot)
}
