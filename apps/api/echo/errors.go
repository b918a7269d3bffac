package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/certificate"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/user"
)

var (
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errRateLimited          = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *auth.PermissionError:
			code = http.StatusForbidden
			message = echo.Map{"error": origErr.Error(), "reason": origErr.Reason, "role": origErr.Role}
		default:
			code, message = matchDomainError(cause)
			if code == 0 { // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Name = claims.Name
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// matchDomainError maps known business errors to HTTP codes; 0 means unknown.
func matchDomainError(cause error) (int, interface{}) {
	switch cause {
	case auth.ErrUnauthenticated:
		return http.StatusUnauthorized, cause.Error()
	case user.ErrNotFound, course.ErrNotFound, course.ErrAssessmentNotFound, course.ErrSubmissionNotFound,
		progress.ErrNotFound, progress.ErrEnrollmentNotFound, certificate.ErrNotFound:
		return http.StatusNotFound, cause.Error()
	case user.ErrEmailExists, course.ErrSubmissionExists, progress.ErrAlreadyEnrolled, certificate.ErrExists,
		course.ErrNotPublished:
		return http.StatusConflict, cause.Error()
	case user.ErrInvalidRole:
		return http.StatusBadRequest, cause.Error()
	case user.ErrRoleNotHeld, progress.ErrNotEnrolled:
		return http.StatusForbidden, cause.Error()
	case core.ErrUnavailable:
		return http.StatusServiceUnavailable, cause.Error()
	}
	return 0, nil
}
