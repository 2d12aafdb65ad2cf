package sessionkit

import (
	"context"
	"errors"
	"fmt"
)

// Login issues one request to the authentication endpoint. On success the
// access token, refresh token, and user record are replaced atomically and
// persisted. Expected failures come back classified in the LoginResult, not
// as an error; the error return is reserved for storage faults and other
// conditions the Manager cannot absorb.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return m.login(ctx, email, password, RoleNone)
}

// LoginAdmin is the admin-dashboard login path: identical to [Manager.Login]
// except that a valid account without admin privilege is rejected with
// CodeInsufficientPrivileges and no session is established.
//
// LoginAdmin may return an error when input validation, dependency calls, or security checks fail.
// LoginAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) LoginAdmin(ctx context.Context, email, password string) (*LoginResult, error) {
	return m.login(ctx, email, password, RoleAdmin)
}

func (m *Manager) login(ctx context.Context, email, password string, required Role) (*LoginResult, error) {
	grant, err := m.api.Login(ctx, email, password)
	if err != nil {
		result := classifyLoginFailure(err)
		switch result.Code {
		case CodeAuthenticationFailed, CodeInsufficientPrivileges:
			m.metricInc(MetricLoginFailure)
		default:
			m.metricInc(MetricLoginNetworkError)
		}
		m.emitAudit(ctx, auditEventLoginFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"code":  string(result.Code),
				"email": email,
			}
		})
		return result, nil
	}

	if grant == nil || grant.AccessToken == "" || grant.User == nil {
		err := fmt.Errorf("%w: login response missing token or user", ErrSchemaUnknown)
		m.metricInc(MetricLoginNetworkError)
		m.emitAudit(ctx, auditEventLoginFailure, false, "", err, nil)
		return &LoginResult{
			Code:    CodeNetworkError,
			Message: "The server response could not be understood. Please try again.",
		}, nil
	}

	if required != RoleNone && !DeriveRole(grant.User).AtLeast(required) {
		m.metricInc(MetricLoginFailure)
		m.emitAudit(ctx, auditEventLoginFailure, false, grant.User.ID, ErrInsufficientPrivileges, func() map[string]string {
			return map[string]string{
				"code":     string(CodeInsufficientPrivileges),
				"required": required.String(),
			}
		})
		return &LoginResult{
			Code:    CodeInsufficientPrivileges,
			Message: "This account does not have access to the admin area.",
		}, nil
	}

	m.mu.Lock()
	m.clearSessionLocked()
	m.setSessionLocked(grant.AccessToken, grant.RefreshToken, grant.User)
	persistErr := m.persistLocked(ctx)
	user := m.currentUser.Clone()
	m.mu.Unlock()
	if persistErr != nil {
		return nil, persistErr
	}

	m.metricInc(MetricLoginSuccess)
	m.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)

	return &LoginResult{
		OK:   true,
		User: user,
	}, nil
}

func classifyLoginFailure(err error) *LoginResult {
	switch {
	case errors.Is(err, ErrInsufficientPrivileges):
		return &LoginResult{
			Code:    CodeInsufficientPrivileges,
			Message: "This account does not have access to the admin area.",
		}
	case errors.Is(err, ErrAuthenticationFailed):
		return &LoginResult{
			Code:    CodeAuthenticationFailed,
			Message: "Incorrect email or password.",
		}
	default:
		return &LoginResult{
			Code:    CodeNetworkError,
			Message: "The server could not be reached. Please try again.",
		}
	}
}

// Logout clears the in-memory session and persisted storage. Calling it with
// no active session is a no-op without error.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Logout(ctx context.Context) error {
	return m.endSession(ctx, EndReasonLogout, nil)
}

// ForceLogout is semantically identical to [Manager.Logout]; it exists so
// expiry-triggered termination is distinguishable in the audit log. The
// reason string lands in the event metadata.
//
// ForceLogout may return an error when input validation, dependency calls, or security checks fail.
// ForceLogout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) ForceLogout(ctx context.Context, reason string) error {
	return m.endSession(ctx, EndReasonForced, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}

func (m *Manager) endSession(ctx context.Context, reason EndReason, metadata func() map[string]string) error {
	m.mu.Lock()
	wasActive := m.accessToken != "" || m.currentUser != nil || m.refreshToken != ""
	userID := ""
	if m.currentUser != nil {
		userID = m.currentUser.ID
	}
	m.clearSessionLocked()
	clearErr := m.store.Clear(ctx)
	m.mu.Unlock()

	if !wasActive {
		// Idempotent: repeated logouts change nothing and report nothing.
		return clearErr
	}

	switch reason {
	case EndReasonLogout:
		m.metricInc(MetricLogout)
		m.emitAudit(ctx, auditEventLogout, true, userID, nil, metadata)
	case EndReasonForced:
		m.metricInc(MetricForcedLogout)
		m.emitAudit(ctx, auditEventForcedLogout, true, userID, nil, metadata)
	case EndReasonRefreshRejected:
		m.emitAudit(ctx, auditEventRefreshRejected, false, userID, ErrRefreshRejected, metadata)
	}

	if m.onSessionEnd != nil {
		m.onSessionEnd(reason)
	}

	return clearErr
}
