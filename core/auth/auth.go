// Package auth decides who may act on what. It is pure: its only input is
// the opaque session token (resolved through a SessionProvider) and the
// resource ownership facts supplied by the caller.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core/user"
)

// ErrUnauthenticated is returned whenever a session token is missing,
// invalid or expired. Resolution fails closed: no partial identities.
var ErrUnauthenticated = errors.New("not authenticated")

// Denial reasons. RoleNotActive is recoverable by switching roles;
// RoleNotHeld is not recoverable without a grant.
const (
	ReasonRoleNotHeld   = "role_not_held"
	ReasonRoleNotActive = "role_not_active"
	ReasonNotOwner      = "not_owner"
)

// PermissionError is an authenticated-but-denied outcome.
type PermissionError struct {
	Reason string
	Role   string // the role that was required, if any
}

func (e *PermissionError) Error() string {
	switch e.Reason {
	case ReasonRoleNotHeld:
		return fmt.Sprintf("permission denied: role %q not held", e.Role)
	case ReasonRoleNotActive:
		return fmt.Sprintf("permission denied: role %q held but not active", e.Role)
	case ReasonNotOwner:
		return "permission denied: not the resource owner"
	}
	return "permission denied"
}

// Identity is the resolved caller: who they are, the roles they hold and the
// single role currently in effect.
type Identity struct {
	AccountID  string
	HeldRoles  []string
	ActiveRole string
}

// Holds reports whether the identity holds `role`, active or not.
func (id Identity) Holds(role string) bool {
	for _, r := range id.HeldRoles {
		if r == role {
			return true
		}
	}
	return false
}

type (
	// Session is what the external session provider yields for a token.
	Session struct {
		AccountID  string
		HeldRoles  []string
		ActiveRole string
		ExpiresAt  time.Time
	}

	// SessionProvider verifies an opaque token. The resolver treats it as
	// input only; issuance and renewal live elsewhere.
	SessionProvider interface {
		Verify(token string) (Session, error)
	}
)

// Resolve turns an opaque token into an Identity, or ErrUnauthenticated.
// Any missing, invalid or expired token yields ErrUnauthenticated, as does
// any session that would violate the role invariants.
func Resolve(provider SessionProvider, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	sess, err := provider.Verify(token)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return Identity{}, ErrUnauthenticated
	}

	id := Identity{
		AccountID:  normalizeID(sess.AccountID),
		HeldRoles:  sess.HeldRoles,
		ActiveRole: sess.ActiveRole,
	}
	if id.AccountID == "" || len(id.HeldRoles) == 0 || !id.Holds(id.ActiveRole) {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// Authorize allows iff the required role is the identity's active role.
// Holding the role without it being active is denied with RoleNotActive so
// clients can offer the switch-role remediation.
func Authorize(id Identity, requiredRole string) error {
	if id.ActiveRole == requiredRole {
		return nil
	}
	if id.Holds(requiredRole) {
		return &PermissionError{Reason: ReasonRoleNotActive, Role: requiredRole}
	}
	return &PermissionError{Reason: ReasonRoleNotHeld, Role: requiredRole}
}

// AuthorizeOwnerOrAdmin allows an active admin to act on any resource, and an
// identity with the required active role to act on resources it owns.
// Ownership is compared on string-normalized IDs.
func AuthorizeOwnerOrAdmin(id Identity, resourceOwnerID, requiredRole string) error {
	if id.ActiveRole == user.RoleAdmin {
		return nil
	}
	if err := Authorize(id, requiredRole); err != nil {
		return err
	}
	if id.AccountID != normalizeID(resourceOwnerID) {
		return &PermissionError{Reason: ReasonNotOwner, Role: requiredRole}
	}
	return nil
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
