package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Middleware 解析 Authorization 头并注入 Principal。
// 没有凭证的请求以匿名身份放行；凭证无效直接返回 401。
func Middleware(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := ParseAuthorization(r.Header.Get("Authorization"), secret)
		switch {
		case errors.Is(err, ErrMissingToken):
			next.ServeHTTP(w, r)
		case err != nil:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
		default:
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		}
	})
}
