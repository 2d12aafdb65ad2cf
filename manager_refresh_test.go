package sessionkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/portalkit/sessionkit/store"
)

func TestRefreshSuccessReplacesToken(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	st := store.NewMemStore()
	m := newTestManager(t, api, st, clock)
	mustLogin(t, m, api, clock, time.Minute)

	fresh := mintToken(t, clock.Now().Add(time.Hour))
	api.setRefresh(&TokenGrant{AccessToken: fresh}, nil)

	tok, err := m.RefreshAccessToken(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if tok != fresh {
		t.Fatal("expected the refreshed token back")
	}
	if got := m.TokenTimeRemaining(); got != time.Hour {
		t.Fatalf("remaining = %v, want %v", got, time.Hour)
	}

	// The grant carried no user; the cached record must survive the swap.
	if user := m.CurrentUser(); user == nil || user.ID != "1" {
		t.Fatalf("user after refresh = %+v, want id 1", user)
	}

	state, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state.AccessToken != fresh {
		t.Fatal("refreshed token must be persisted")
	}
	if state.RefreshToken != "refresh-1" {
		t.Fatal("refresh token must survive a grant without rotation")
	}
}

func TestRefreshRotatesRefreshToken(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	st := store.NewMemStore()
	m := newTestManager(t, api, st, clock)
	mustLogin(t, m, api, clock, time.Minute)

	api.setRefresh(&TokenGrant{
		AccessToken:  mintToken(t, clock.Now().Add(time.Hour)),
		RefreshToken: "refresh-2",
	}, nil)
	if _, err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	state, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state.RefreshToken != "refresh-2" {
		t.Fatalf("refresh token = %q, want rotated refresh-2", state.RefreshToken)
	}
}

func TestRefreshCoalescesConcurrentCallers(t *testing.T) {
	api := &fakeAPI{
		refreshEntered: make(chan struct{}, 1),
		refreshGate:    make(chan struct{}),
	}
	clock := newFakeClock()
	m := newTestManager(t, api, nil, clock)
	mustLogin(t, m, api, clock, time.Minute)

	fresh := mintToken(t, clock.Now().Add(time.Hour))
	api.setRefresh(&TokenGrant{AccessToken: fresh}, nil)

	const joiners = 15
	results := make(chan string, joiners+1)
	errs := make(chan error, joiners+1)

	go func() {
		tok, err := m.RefreshAccessToken(context.Background())
		results <- tok
		errs <- err
	}()

	// Wait for the leader to reach the endpoint, then pile on joiners while
	// the call is held open.
	<-api.refreshEntered

	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.RefreshAccessToken(context.Background())
			results <- tok
			errs <- err
		}()
	}

	// Let the joiners reach the shared call before releasing the endpoint.
	time.Sleep(50 * time.Millisecond)
	close(api.refreshGate)
	wg.Wait()

	for i := 0; i < joiners+1; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if tok := <-results; tok != fresh {
			t.Fatalf("caller %d got token %q, want the shared result", i, tok)
		}
	}
	if calls := api.refreshCalls.Load(); calls != 1 {
		t.Fatalf("refresh endpoint hit %d times, want exactly 1", calls)
	}
}

func TestSequentialRefreshesAreNotCoalesced(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	m := newTestManager(t, api, nil, clock)
	mustLogin(t, m, api, clock, time.Minute)

	api.setRefresh(&TokenGrant{AccessToken: mintToken(t, clock.Now().Add(time.Hour))}, nil)
	if _, err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if calls := api.refreshCalls.Load(); calls != 2 {
		t.Fatalf("refresh endpoint hit %d times, want 2 after the first settled", calls)
	}
}

func TestRefreshRejectedTearsDownSession(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	st := store.NewMemStore()
	m := newTestManager(t, api, st, clock)
	mustLogin(t, m, api, clock, time.Minute)

	api.setRefresh(nil, ErrAuthenticationFailed)
	_, err := m.RefreshAccessToken(context.Background())
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("err = %v, want ErrRefreshRejected", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("dead refresh token must end the session")
	}
	if m.CurrentUser() != nil {
		t.Fatal("user record must be discarded")
	}
	if !storeCleared(t, st) {
		t.Fatal("persisted state must be cleared")
	}
}

func TestRefreshNetworkBlipPreservesSession(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	st := store.NewMemStore()
	m := newTestManager(t, api, st, clock)
	mustLogin(t, m, api, clock, time.Hour)

	api.setRefresh(nil, ErrNetworkUnavailable)
	_, err := m.RefreshAccessToken(context.Background())
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("err = %v, want ErrNetworkUnavailable", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("a transport failure must not end a still-valid session")
	}
	if storeCleared(t, st) {
		t.Fatal("persisted state must survive a transport failure")
	}

	// Connectivity returns; the next call succeeds with no user action.
	api.setRefresh(&TokenGrant{AccessToken: mintToken(t, clock.Now().Add(2 * time.Hour))}, nil)
	if _, err := m.RefreshAccessToken(context.Background()); err != nil {
		t.Fatalf("retry after blip: %v", err)
	}
}

func TestLogoutWinsOverInFlightRefresh(t *testing.T) {
	api := &fakeAPI{
		refreshEntered: make(chan struct{}, 1),
		refreshGate:    make(chan struct{}),
	}
	clock := newFakeClock()
	st := store.NewMemStore()
	m := newTestManager(t, api, st, clock)
	mustLogin(t, m, api, clock, time.Minute)

	api.setRefresh(&TokenGrant{AccessToken: mintToken(t, clock.Now().Add(time.Hour))}, nil)

	refreshDone := make(chan error, 1)
	go func() {
		_, err := m.RefreshAccessToken(context.Background())
		refreshDone <- err
	}()
	<-api.refreshEntered

	// Logout lands while the refresh call is held open; the refresh settling
	// afterwards must not resurrect the session or its persisted state.
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(api.refreshGate)

	if err := <-refreshDone; !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("refresh err = %v, want ErrNotAuthenticated", err)
	}
	if m.IsAuthenticated() {
		t.Fatal("refresh settling after logout must not re-establish the session")
	}
	if m.CurrentUser() != nil {
		t.Fatal("user record must stay discarded")
	}
	if !storeCleared(t, st) {
		t.Fatal("persisted state must stay cleared after logout")
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	api := &fakeAPI{}
	m := newTestManager(t, api, nil, nil)

	_, err := m.RefreshAccessToken(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if calls := api.refreshCalls.Load(); calls != 0 {
		t.Fatalf("refresh endpoint hit %d times, want 0", calls)
	}
}

func TestGetValidTokenMargin(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	m := newTestManager(t, api, nil, clock)

	// Ten minutes of validity against the default five-minute margin: the
	// current token is good enough.
	mustLogin(t, m, api, clock, 10*time.Minute)
	tok, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("get valid token: %v", err)
	}
	if tok == "" {
		t.Fatal("expected the current token back")
	}
	if calls := api.refreshCalls.Load(); calls != 0 {
		t.Fatalf("refresh endpoint hit %d times before the margin, want 0", calls)
	}

	// Inside the margin: the token must be refreshed before being handed out.
	clock.Advance(6 * time.Minute)
	fresh := mintToken(t, clock.Now().Add(time.Hour))
	api.setRefresh(&TokenGrant{AccessToken: fresh}, nil)

	tok, err = m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("get valid token inside margin: %v", err)
	}
	if tok != fresh {
		t.Fatal("expected the refreshed token inside the margin")
	}
	if calls := api.refreshCalls.Load(); calls != 1 {
		t.Fatalf("refresh endpoint hit %d times inside the margin, want 1", calls)
	}
}

func TestRefreshGrantWithoutToken(t *testing.T) {
	api := &fakeAPI{}
	clock := newFakeClock()
	m := newTestManager(t, api, nil, clock)
	mustLogin(t, m, api, clock, time.Hour)

	api.setRefresh(&TokenGrant{}, nil)
	_, err := m.RefreshAccessToken(context.Background())
	if !errors.Is(err, ErrSchemaUnknown) {
		t.Fatalf("err = %v, want ErrSchemaUnknown", err)
	}
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("err = %v, want ErrNetworkUnavailable for retryability", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("an unusable grant must not end the session")
	}
}

func TestJoinerContextCancellation(t *testing.T) {
	api := &fakeAPI{
		refreshEntered: make(chan struct{}, 1),
		refreshGate:    make(chan struct{}),
	}
	clock := newFakeClock()
	m := newTestManager(t, api, nil, clock)
	mustLogin(t, m, api, clock, time.Minute)

	api.setRefresh(&TokenGrant{AccessToken: mintToken(t, clock.Now().Add(time.Hour))}, nil)

	leaderDone := make(chan error, 1)
	go func() {
		_, err := m.RefreshAccessToken(context.Background())
		leaderDone <- err
	}()
	<-api.refreshEntered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.RefreshAccessToken(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("joiner err = %v, want context.Canceled", err)
	}

	// The underlying refresh is unaffected by the joiner giving up.
	close(api.refreshGate)
	if err := <-leaderDone; err != nil {
		t.Fatalf("leader: %v", err)
	}
	if !m.IsAuthenticated() {
		t.Fatal("leader result must still apply")
	}
}
