package auth

import (
	"net/http"
	"strings"

	"github.com/stocktally/stocktally/internal/platform/httpx"
	"github.com/stocktally/stocktally/internal/shared"
)

// RequireToken guards a route group behind a valid bearer token. The verified
// token is stored in the request context for downstream audit use.
func (s *Service) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		token := strings.TrimSpace(header[len("bearer "):])
		if err := s.VerifyToken(r.Context(), token); err != nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		ctx := shared.ContextWithToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
