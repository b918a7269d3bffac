package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/ratelimit"
	"github.com/elimulab/elimu/core/user"
)

// rateLimitMiddleware rejects clients that exceed the limiter's fixed window,
// keyed by client IP.
func rateLimitMiddleware(limiter *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !limiter.Allow(ctx.RealIP()) {
				return errRateLimited
			}
			return next(ctx)
		}
	}
}

// activeAdminMiddleware requires admin to be the caller's active role.
func activeAdminMiddleware() echo.MiddlewareFunc {
	return activeRoleMiddleware(user.RoleAdmin)
}

// activeRoleMiddleware requires the given active role. Holding the role
// without it being active is still denied, with a distinguishable reason.
func activeRoleMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context identity")
			}
			if err := auth.Authorize(id, role); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
