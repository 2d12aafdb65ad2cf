package sessionkit

import (
	"context"
	"strings"
	"time"
)

// Role is the closed set of privilege levels a session can hold. Legacy
// backends report roles as a boolean flag, a single role string, or a role
// list; [DeriveRole] folds all three into this enum so a new role string can
// never silently fail an authorization check.
type Role uint8

const (
	// RoleNone is the privilege level of an unauthenticated session.
	RoleNone Role = iota
	// RoleMember is an authenticated user with no administrative rights.
	RoleMember
	// RoleAdmin may manage projects, people, and subscriptions.
	RoleAdmin
	// RoleSuperAdmin may additionally manage other admins.
	RoleSuperAdmin
)

// String returns the canonical wire spelling of the role.
func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return "none"
	}
}

// AtLeast reports whether the role carries at least the privilege of other.
// This is the single capability check; callers must not compare role strings.
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// ParseRole maps a wire role string onto the closed enum. Unknown strings map
// to RoleNone rather than guessing.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member", "user":
		return RoleMember
	case "admin", "administrator":
		return RoleAdmin
	case "super_admin", "superadmin", "super-admin":
		return RoleSuperAdmin
	default:
		return RoleNone
	}
}

// UserRecord is the canonical cached profile. Backends historically shipped
// two diverging user shapes; this is the lean one. Fields the legacy shape
// carried on top (phone, address, date of birth) survive ingest in Extra
// instead of being first-class.
type UserRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`

	IsAdmin bool     `json:"isAdmin,omitempty"`
	Role    string   `json:"role,omitempty"`
	Roles   []string `json:"roles,omitempty"`

	RequirePasswordChange bool       `json:"requirePasswordChange,omitempty"`
	IsActive              bool       `json:"isActive"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy so callers can never mutate the Manager's cached
// record through a returned pointer.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	if u.Roles != nil {
		out.Roles = append([]string(nil), u.Roles...)
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	if u.Extra != nil {
		out.Extra = make(map[string]string, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// DeriveRole computes the effective privilege level from every role signal a
// backend may send: the isAdmin flag, the legacy single-role string, and the
// role list. The strongest signal wins.
func DeriveRole(u *UserRecord) Role {
	if u == nil {
		return RoleNone
	}
	best := RoleMember
	if u.IsAdmin {
		best = RoleAdmin
	}
	if r := ParseRole(u.Role); r > best {
		best = r
	}
	for _, raw := range u.Roles {
		if r := ParseRole(raw); r > best {
			best = r
		}
	}
	return best
}

// FailureCode classifies an expected login failure for UI consumption.
type FailureCode string

const (
	// CodeAuthenticationFailed means the server rejected the credentials.
	CodeAuthenticationFailed FailureCode = "AUTHENTICATION_FAILED"
	// CodeInsufficientPrivileges means the credentials were valid but the
	// account lacks the privilege the login path requires.
	CodeInsufficientPrivileges FailureCode = "INSUFFICIENT_PRIVILEGES"
	// CodeNetworkError means the server could not be reached or answered
	// with something the client does not understand.
	CodeNetworkError FailureCode = "NETWORK_ERROR"
)

// LoginResult is the typed outcome of [Manager.Login] and
// [Manager.LoginAdmin]. Expected failures are reported here, not as errors.
type LoginResult struct {
	OK      bool
	Code    FailureCode
	Message string
	User    *UserRecord
}

// TokenGrant is what the authentication API hands back on login and refresh.
// RefreshToken and User may be empty on refresh responses; the Manager keeps
// the previous values in that case.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	User         *UserRecord
}

// ProfileUpdate carries the mutable profile fields. Nil pointers mean
// "leave unchanged".
type ProfileUpdate struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// AuthAPI is the authentication-endpoint contract the Manager depends on.
// The api sub-package provides the HTTP implementation; tests substitute
// fakes. Implementations classify failures with the package sentinel errors
// (ErrAuthenticationFailed, ErrInsufficientPrivileges, ErrNetworkUnavailable,
// ErrSchemaUnknown).
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
	Profile(ctx context.Context, accessToken string) (*UserRecord, error)
	UpdateProfile(ctx context.Context, accessToken string, update ProfileUpdate) (*UserRecord, error)
}

// EndReason says why a session was torn down. It is handed to the
// OnSessionEnd callback so consumers can distinguish a user-initiated logout
// from an expiry-triggered one when deciding what to show next.
type EndReason string

const (
	// EndReasonLogout is a user-initiated logout.
	EndReasonLogout EndReason = "logout"
	// EndReasonForced is an expiry- or policy-triggered logout.
	EndReasonForced EndReason = "forced_logout"
	// EndReasonRefreshRejected means the refresh token was rejected by the
	// server and the session could not be repaired.
	EndReasonRefreshRejected EndReason = "refresh_rejected"
)
