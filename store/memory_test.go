package store

import (
	"context"
	"testing"
)

func TestMemStoreRoundTrip(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	in := State{AccessToken: "a", RefreshToken: "r", UserJSON: []byte(`{"id":"1"}`)}
	if err := ms.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := ms.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.AccessToken != "a" || out.RefreshToken != "r" || string(out.UserJSON) != `{"id":"1"}` {
		t.Fatalf("loaded %+v", out)
	}
}

func TestMemStoreCopiesUserJSON(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	buf := []byte(`{"id":"1"}`)
	if err := ms.Save(ctx, State{AccessToken: "a", UserJSON: buf}); err != nil {
		t.Fatalf("save: %v", err)
	}
	buf[2] = 'X'

	out, err := ms.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(out.UserJSON) != `{"id":"1"}` {
		t.Fatalf("stored bytes aliased caller buffer: %s", out.UserJSON)
	}

	out.UserJSON[2] = 'Y'
	again, _ := ms.Load(ctx)
	if string(again.UserJSON) != `{"id":"1"}` {
		t.Fatalf("loaded bytes alias store buffer: %s", again.UserJSON)
	}
}

func TestMemStoreClear(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	if err := ms.Save(ctx, State{AccessToken: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ms.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	state, err := ms.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !state.Empty() {
		t.Fatalf("state after clear = %+v, want empty", state)
	}
}
