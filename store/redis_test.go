package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rs, err := NewRedisStore(client, "testkit")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	return rs, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rs, _ := newRedisStoreTest(t)
	ctx := context.Background()

	in := State{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		UserJSON:     []byte(`{"id":"1"}`),
	}
	if err := rs.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := rs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.AccessToken != in.AccessToken || out.RefreshToken != in.RefreshToken {
		t.Fatalf("loaded %+v, want %+v", out, in)
	}
	if string(out.UserJSON) != string(in.UserJSON) {
		t.Fatalf("user json = %s, want %s", out.UserJSON, in.UserJSON)
	}
}

func TestRedisStoreEmptyLoad(t *testing.T) {
	rs, _ := newRedisStoreTest(t)

	state, err := rs.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !state.Empty() {
		t.Fatalf("loaded %+v, want empty state", state)
	}
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	rs, mr := newRedisStoreTest(t)

	if err := rs.Save(context.Background(), State{AccessToken: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got, err := mr.Get("testkit:access_token"); err != nil || got != "a" {
		t.Fatalf("key testkit:access_token = %q (%v), want a", got, err)
	}
}

func TestRedisStoreSaveDropsUserKey(t *testing.T) {
	rs, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if err := rs.Save(ctx, State{AccessToken: "a", UserJSON: []byte(`{}`)}); err != nil {
		t.Fatalf("save with user: %v", err)
	}
	if err := rs.Save(ctx, State{AccessToken: "b"}); err != nil {
		t.Fatalf("save without user: %v", err)
	}
	if mr.Exists("testkit:user") {
		t.Fatal("saving without a user must delete the user key")
	}

	state, err := rs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.UserJSON) != 0 {
		t.Fatalf("user json = %s, want none", state.UserJSON)
	}
}

func TestRedisStoreClear(t *testing.T) {
	rs, mr := newRedisStoreTest(t)
	ctx := context.Background()

	if err := rs.Save(ctx, State{AccessToken: "a", RefreshToken: "r", UserJSON: []byte(`{}`)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := rs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, key := range []string{"testkit:access_token", "testkit:refresh_token", "testkit:user"} {
		if mr.Exists(key) {
			t.Fatalf("key %s still present after clear", key)
		}
	}
	if err := rs.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestNewRedisStoreDefaults(t *testing.T) {
	if _, err := NewRedisStore(nil, ""); err == nil {
		t.Fatal("expected error for nil client")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	rs, err := NewRedisStore(client, "")
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	if rs.prefix != "sessionkit" {
		t.Fatalf("prefix = %q, want sessionkit", rs.prefix)
	}
}
