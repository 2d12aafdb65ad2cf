package sessionkit

import (
	"context"
	"errors"

	"github.com/portalkit/sessionkit/token"
)

// refreshCall is the shared handle for one in-flight refresh. Joiners wait on
// done and then read token/err; both are written before done is closed.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// GetValidToken returns the access token if it has more than the configured
// safety margin of validity left, and refreshes otherwise. Every outbound
// authenticated request must obtain its bearer token here so it never
// knowingly sends one that is expired or about to expire mid-request.
//
// GetValidToken may return an error when input validation, dependency calls, or security checks fail.
// GetValidToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	tok := m.accessToken
	m.mu.Unlock()

	if tok != "" && token.TimeRemaining(tok, m.now()) > m.config.Token.RefreshMargin {
		return tok, nil
	}
	return m.RefreshAccessToken(ctx)
}

// RefreshAccessToken exchanges the refresh token for a new access token.
//
// Concurrency contract: while one refresh is in flight, every concurrent
// caller joins it and receives the same result; exactly one request reaches
// the refresh endpoint per window. Only after the in-flight call settles does
// a new call start a fresh refresh.
//
// A rejected refresh token is fatal: the session is torn down entirely and
// ErrRefreshRejected returned. A transport failure preserves the session and
// returns ErrNetworkUnavailable so the next caller retries.
//
// RefreshAccessToken may return an error when input validation, dependency calls, or security checks fail.
// RefreshAccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if call := m.refreshCall; call != nil {
		m.mu.Unlock()
		m.metricInc(MetricRefreshCoalesced)
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			// The joiner gives up waiting; the underlying refresh carries on
			// and its state mutation stands.
			return "", ctx.Err()
		}
	}

	refreshToken := m.refreshToken
	if refreshToken == "" {
		m.mu.Unlock()
		return "", ErrNotAuthenticated
	}

	call := &refreshCall{done: make(chan struct{})}
	m.refreshCall = call
	m.mu.Unlock()

	tok, err := m.doRefresh(ctx, refreshToken)

	call.token, call.err = tok, err
	m.mu.Lock()
	m.refreshCall = nil
	m.mu.Unlock()
	close(call.done)

	return tok, err
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	start := m.now()
	grant, err := m.api.Refresh(ctx, refreshToken)
	m.metrics.Observe(MetricRefreshLatency, m.now().Sub(start))

	switch {
	case err == nil:
		if grant == nil || grant.AccessToken == "" {
			err := errors.Join(ErrNetworkUnavailable, ErrSchemaUnknown)
			m.metricInc(MetricRefreshNetworkError)
			m.emitAudit(ctx, auditEventRefreshUnavailable, false, "", err, nil)
			return "", err
		}

		m.mu.Lock()
		if m.refreshToken == "" {
			// Session ended while the refresh was in flight; do not
			// resurrect credentials the user just discarded.
			m.mu.Unlock()
			return "", ErrNotAuthenticated
		}
		// The refresh token is normally left untouched; a rotating backend
		// may send a replacement, and a user record rides along on some.
		m.setSessionLocked(grant.AccessToken, grant.RefreshToken, grant.User)
		persistErr := m.persistLocked(ctx)
		userID := ""
		if m.currentUser != nil {
			userID = m.currentUser.ID
		}
		m.mu.Unlock()
		if persistErr != nil {
			return "", persistErr
		}

		m.metricInc(MetricRefreshSuccess)
		m.emitAudit(ctx, auditEventRefreshSuccess, true, userID, nil, nil)
		return grant.AccessToken, nil

	case errors.Is(err, ErrAuthenticationFailed), errors.Is(err, ErrInsufficientPrivileges):
		// Dead refresh token: the session cannot be repaired, tear it down
		// rather than leaving it half-valid.
		m.metricInc(MetricRefreshRejected)
		_ = m.endSession(ctx, EndReasonRefreshRejected, nil)
		return "", ErrRefreshRejected

	default:
		// Transport failure: keep the possibly still-valid session for a
		// retry once connectivity returns.
		m.metricInc(MetricRefreshNetworkError)
		m.emitAudit(ctx, auditEventRefreshUnavailable, false, "", err, nil)
		return "", err
	}
}
