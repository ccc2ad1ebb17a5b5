package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"wedding-backend/pkg/auth"
	"wedding-backend/pkg/common"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// RateLimit limits requests per client IP. A limiter error lets the request
// through so that a storage hiccup never locks guests out.
func RateLimit(limiter *auth.IPRateLimiter, limit int, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, err := limiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Warn("Rate limiter error", zap.Error(err), zap.String("ip", clientIP))
			}
			if !allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(limit, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin validates the bearer token and requires the admin role. A nil
// validator refuses every request.
func RequireAdmin(validator *auth.JWTValidator, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("admin access is not configured"))
				return
			}

			token := extractToken(r)
			if token == "" {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("missing authentication token"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", getClientIP(r)),
					zap.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("token has expired"))
				case errors.Is(err, auth.ErrInvalidSignature):
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("invalid token signature"))
				default:
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("invalid token"))
				}
				return
			}

			if !claims.HasRole(auth.RoleAdmin) {
				errs.Handle(w, r, pkgerrors.NewForbiddenError("insufficient permissions"))
				return
			}

			ctx := auth.WithClaims(r.Context(), claims)
			ctx = common.WithSubject(ctx, claims.Subject)
			ctx = common.WithRoles(ctx, claims.Roles)

			logger.Debug("Request authenticated",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return authHeader
}

// getClientIP extracts the client IP address. chi's RealIP has already
// folded the forwarding headers into RemoteAddr.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
