package sessionkit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/portalkit/sessionkit/store"
)

// testEpoch is an arbitrary fixed instant all manager tests run at.
var testEpoch = time.Unix(1700000000, 0).UTC()

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func mintToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "1",
		"email": "a@b.com",
		"exp":   exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return signed
}

// fakeAPI is a scripted AuthAPI. Refresh can be gated so concurrency tests
// control when the in-flight call settles.
type fakeAPI struct {
	mu sync.Mutex

	loginGrant *TokenGrant
	loginErr   error
	loginCalls atomic.Int64

	refreshGrant   *TokenGrant
	refreshErr     error
	refreshCalls   atomic.Int64
	refreshEntered chan struct{}
	refreshGate    chan struct{}

	profileUser *UserRecord
	profileErr  error
}

func (f *fakeAPI) Login(context.Context, string, string) (*TokenGrant, error) {
	f.loginCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginGrant, nil
}

func (f *fakeAPI) Refresh(context.Context, string) (*TokenGrant, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	entered, gate := f.refreshEntered, f.refreshGate
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshGrant, nil
}

func (f *fakeAPI) Profile(context.Context, string) (*UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profileUser.Clone(), nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, _ string, update ProfileUpdate) (*UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	user := f.profileUser.Clone()
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	return user, nil
}

func (f *fakeAPI) setRefresh(grant *TokenGrant, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshGrant = grant
	f.refreshErr = err
}

func newTestManager(t *testing.T, api *fakeAPI, st store.Store, clock *fakeClock) *Manager {
	t.Helper()
	if st == nil {
		st = store.NewMemStore()
	}
	if clock == nil {
		clock = newFakeClock()
	}
	m, err := New().
		WithAPI(api).
		WithStore(st).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func mustLogin(t *testing.T, m *Manager, api *fakeAPI, clock *fakeClock, tokenTTL time.Duration) *UserRecord {
	t.Helper()
	api.mu.Lock()
	api.loginGrant = &TokenGrant{
		AccessToken:  mintToken(t, clock.Now().Add(tokenTTL)),
		RefreshToken: "refresh-1",
		User:         &UserRecord{ID: "1", Email: "a@b.com", IsActive: true},
	}
	api.loginErr = nil
	api.mu.Unlock()

	result, err := m.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !result.OK {
		t.Fatalf("login rejected: %s %s", result.Code, result.Message)
	}
	return result.User
}

func storeCleared(t *testing.T, st store.Store) bool {
	t.Helper()
	state, err := st.Load(context.Background())
	if err != nil && !errors.Is(err, store.ErrCorruptState) {
		t.Fatalf("load state: %v", err)
	}
	return state.Empty()
}
