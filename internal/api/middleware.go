package api

import (
	"errors"
	"net/http"

	"reservd/internal/model"
)

// Gateway headers carrying the resolved principal.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
)

var errNoPrincipal = errors.New("missing principal headers")

// principalFrom resolves the authenticated caller from gateway headers.
func principalFrom(r *http.Request) (model.Principal, error) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		return model.Principal{}, errNoPrincipal
	}
	role := model.Role(r.Header.Get(headerRole))
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	return model.Principal{UserID: userID, Role: role}, nil
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
