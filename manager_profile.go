package sessionkit

import (
	"context"
	"errors"
)

// SyncProfile re-fetches the user record from the server and replaces the
// cached copy, picking up role or account-state changes made elsewhere. A
// 401 on the profile endpoint means the session is gone server-side; the
// local session is torn down to match.
//
// SyncProfile may return an error when input validation, dependency calls, or security checks fail.
// SyncProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) SyncProfile(ctx context.Context) (*UserRecord, error) {
	tok, err := m.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	user, err := m.api.Profile(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			_ = m.endSession(ctx, EndReasonForced, func() map[string]string {
				return map[string]string{
					"reason": "profile_fetch_unauthorized",
				}
			})
		}
		return nil, err
	}

	m.mu.Lock()
	if m.accessToken == "" {
		// Session ended while the fetch was in flight; do not resurrect a
		// user record without a token.
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	m.currentUser = user.Clone()
	persistErr := m.persistLocked(ctx)
	m.mu.Unlock()
	if persistErr != nil {
		return nil, persistErr
	}

	m.metricInc(MetricProfileSync)
	m.emitAudit(ctx, auditEventProfileSynced, true, user.ID, nil, nil)
	return user.Clone(), nil
}

// UpdateProfile pushes changed profile fields to the server and replaces the
// cached record with the server's response.
//
// UpdateProfile may return an error when input validation, dependency calls, or security checks fail.
// UpdateProfile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) (*UserRecord, error) {
	tok, err := m.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	user, err := m.api.UpdateProfile(ctx, tok, update)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.accessToken == "" {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	m.currentUser = user.Clone()
	persistErr := m.persistLocked(ctx)
	m.mu.Unlock()
	if persistErr != nil {
		return nil, persistErr
	}

	m.metricInc(MetricProfileUpdate)
	m.emitAudit(ctx, auditEventProfileUpdated, true, user.ID, nil, nil)
	return user.Clone(), nil
}
