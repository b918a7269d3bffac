package echoapi

import (
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/user"
)

const (
	jwtSigningMethod   = "HS256"
	contextIdentityKey = "identity"
	contextClaimsKey   = "claims"
	contextUserKey     = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	ActiveRole   string   `json:"active_role,omitempty"`
}

func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         usr.Name,
		Email:        usr.Email,
		Roles:        usr.Roles,
		ActiveRole:   usr.ActiveRole,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(jwtSigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(core.Conf.SecretKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func parseClaims(token string) (*Claims, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwtSigningMethod {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return core.Conf.SecretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// jwtSessionProvider is the auth.SessionProvider over our signed JWTs.
type jwtSessionProvider struct{}

var _ auth.SessionProvider = jwtSessionProvider{}

func (jwtSessionProvider) Verify(token string) (auth.Session, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{
		AccountID:  claims.Subject,
		HeldRoles:  claims.Roles,
		ActiveRole: claims.ActiveRole,
		ExpiresAt:  time.Unix(claims.ExpiresAt, 0),
	}, nil
}

// authMiddleware resolves the Bearer token into an Identity and stashes it in
// the request context. Requests that do not resolve never reach handlers.
func authMiddleware() echo.MiddlewareFunc {
	provider := jwtSessionProvider{}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := extractToken(ctx)
			identity, err := auth.Resolve(provider, token)
			if err != nil {
				return err
			}
			ctx.Set(contextIdentityKey, identity)

			if claims, err := parseClaims(token); err == nil {
				ctx.Set(contextClaimsKey, *claims)
			}
			return next(ctx)
		}
	}
}

func extractToken(ctx echo.Context) string {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return ""
}

func getContextIdentity(ctx echo.Context) (auth.Identity, error) {
	if id, ok := ctx.Get(contextIdentityKey).(auth.Identity); ok {
		return id, nil
	}
	return auth.Identity{}, auth.ErrUnauthenticated
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, auth.ErrUnauthenticated
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByID(ctx.Request().Context(), id.AccountID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func authenticate(ctx echo.Context, email, pwd string, svc user.ServiceInterface) (*Claims, error) {
	usr, err := svc.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if usr.IsActive != nil && !*usr.IsActive {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(usr), nil
}

func refreshToken(ctx echo.Context, svc user.ServiceInterface) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if usr.IsActive != nil && !*usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(core.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetUserClaims(usr, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
