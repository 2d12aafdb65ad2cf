package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/portalkit/sessionkit/store"
	"github.com/portalkit/sessionkit/token"
)

// Manager is the single authority for "who is logged in, with what
// credential, and is that credential still valid". Construct exactly one per
// application through [Builder.Build] and pass it by reference; there is no
// package-level instance.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config       Config
	api          AuthAPI
	store        store.Store
	audit        *auditDispatcher
	metrics      *Metrics
	now          func() time.Time
	instanceID   string
	onSessionEnd func(EndReason)

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	currentUser  *UserRecord
	refreshCall  *refreshCall
}

// Close drains the audit dispatcher. The Manager must not be used afterwards.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	if m.audit != nil {
		m.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under
// backpressure.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) AuditDropped() uint64 {
	if m == nil || m.audit == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot copies the current counter values.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// IsAuthenticated reports whether a token and user record are present and
// the token still has validity left. A present-but-expired token reports
// false without any network call or mutation.
//
// IsAuthenticated does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accessToken == "" || m.currentUser == nil {
		return false
	}
	return token.TimeRemaining(m.accessToken, m.now()) > 0
}

// TokenTimeRemaining returns the validity left on the access token, floored
// at zero. No token, or a malformed one, reports zero; decoding failure never
// surfaces as an error here.
//
// TokenTimeRemaining does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) TokenTimeRemaining() time.Duration {
	m.mu.Lock()
	tok := m.accessToken
	m.mu.Unlock()
	if tok == "" {
		return 0
	}
	return token.TimeRemaining(tok, m.now())
}

// CurrentUser returns a copy of the cached user record, or nil when no
// session is present.
//
// CurrentUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) CurrentUser() *UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentUser.Clone()
}

// HasPrivilege reports whether the session is authenticated and holds at
// least the given role. Role derivation is purely local: the cached record's
// flag, legacy role string, and role list are folded through [DeriveRole].
//
// HasPrivilege does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) HasPrivilege(r Role) bool {
	if !m.IsAuthenticated() {
		return false
	}
	m.mu.Lock()
	u := m.currentUser
	role := DeriveRole(u)
	m.mu.Unlock()
	return role.AtLeast(r)
}

// IsAdmin reports whether the authenticated user holds admin privilege.
//
// IsAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsAdmin() bool {
	return m.HasPrivilege(RoleAdmin)
}

// IsSuperAdmin reports whether the authenticated user holds super-admin
// privilege.
//
// IsSuperAdmin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsSuperAdmin() bool {
	return m.HasPrivilege(RoleSuperAdmin)
}

// RequiresPasswordChange reports whether the cached user record carries the
// server's password-change flag. False when no session is present.
//
// RequiresPasswordChange does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) RequiresPasswordChange() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentUser != nil && m.currentUser.RequirePasswordChange
}

// IsActive reports whether the cached user record is marked active. False
// when no session is present.
//
// IsActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentUser != nil && m.currentUser.IsActive
}

// setSessionLocked replaces the full credential set. Token and user move
// together; callers must never set one without the other.
func (m *Manager) setSessionLocked(accessToken, refreshToken string, user *UserRecord) {
	m.accessToken = accessToken
	if refreshToken != "" {
		m.refreshToken = refreshToken
	}
	if user != nil {
		m.currentUser = user.Clone()
	}
}

func (m *Manager) clearSessionLocked() {
	m.accessToken = ""
	m.refreshToken = ""
	m.currentUser = nil
}

// persistLocked writes the exact in-memory state to storage. Called with the
// state lock held so persisted writes can never land out of order.
func (m *Manager) persistLocked(ctx context.Context) error {
	state := store.State{
		AccessToken:  m.accessToken,
		RefreshToken: m.refreshToken,
	}
	if m.currentUser != nil {
		data, err := json.Marshal(m.currentUser)
		if err != nil {
			return fmt.Errorf("encode user record: %w", err)
		}
		state.UserJSON = data
	}
	if state.Empty() {
		return m.store.Clear(ctx)
	}
	return m.store.Save(ctx, state)
}

// restore reconstructs session state from storage at startup. Corruption and
// invariant-breaking records degrade to "no session"; only the corrupt case
// also clears the stored record so the next start is clean.
func (m *Manager) restore(ctx context.Context) {
	state, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorruptState) {
			m.metricInc(MetricStorageCorrupt)
			m.emitAudit(ctx, auditEventStorageCorrupt, false, "", err, nil)
			_ = m.store.Clear(ctx)
			return
		}
		// Backend unavailable at startup: start logged out, leave whatever
		// is stored for the next start.
		return
	}
	if state.Empty() {
		return
	}

	var user *UserRecord
	if len(state.UserJSON) > 0 {
		user = &UserRecord{}
		if err := json.Unmarshal(state.UserJSON, user); err != nil {
			m.metricInc(MetricStorageCorrupt)
			m.emitAudit(ctx, auditEventStorageCorrupt, false, "",
				fmt.Errorf("%w: user record: %v", store.ErrCorruptState, err), nil)
			_ = m.store.Clear(ctx)
			return
		}
	}

	// Token and user are set together or not at all.
	if state.AccessToken == "" || user == nil {
		m.metricInc(MetricStorageCorrupt)
		m.emitAudit(ctx, auditEventStorageCorrupt, false, "",
			fmt.Errorf("%w: token and user record out of step", store.ErrCorruptState), nil)
		_ = m.store.Clear(ctx)
		return
	}

	m.mu.Lock()
	m.accessToken = state.AccessToken
	m.refreshToken = state.RefreshToken
	m.currentUser = user
	m.mu.Unlock()

	m.metricInc(MetricSessionRestored)
	m.emitAudit(ctx, auditEventSessionRestored, true, user.ID, nil, func() map[string]string {
		return map[string]string{
			"remaining": token.TimeRemaining(state.AccessToken, m.now()).String(),
		}
	})
}

func (m *Manager) emitAudit(ctx context.Context, eventType string, success bool, userID string, cause error, metadata func() map[string]string) {
	if m.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp:  m.now(),
		EventType:  eventType,
		InstanceID: m.instanceID,
		UserID:     userID,
		Success:    success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	m.audit.Emit(ctx, event)
}
