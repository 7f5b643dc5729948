package cartclient

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func line(id, qty int) Line {
	return Line{ProductID: id, Price: decimal.NewFromInt(1), Quantity: qty}
}

func TestMergeLinesSumsSharedProducts(t *testing.T) {
	const (
		a = 1
		b = 2
		c = 3
	)
	local := []Line{line(a, 2), line(b, 1)}
	server := []Line{line(b, 3), line(c, 1)}

	got := MergeLines(local, server)

	want := []struct{ id, qty int }{{b, 4}, {c, 1}, {a, 2}}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %+v", len(want), got)
	}
	for i, w := range want {
		if got[i].ProductID != w.id || got[i].Quantity != w.qty {
			t.Fatalf("line %d: got %+v want id=%d qty=%d", i, got[i], w.id, w.qty)
		}
	}
}

func TestMergeLinesKeepsServerDetails(t *testing.T) {
	local := []Line{{ProductID: 1, Name: "old", Price: decimal.NewFromInt(5), Quantity: 1}}
	server := []Line{{ProductID: 1, Name: "new", Price: decimal.NewFromInt(7), Quantity: 2}}

	got := MergeLines(local, server)
	if got[0].Name != "new" || !got[0].Price.Equal(decimal.NewFromInt(7)) || got[0].Quantity != 3 {
		t.Fatalf("unexpected merged line %+v", got[0])
	}
}

func TestMergerMergesOncePerSignIn(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer(
		RemoteLine{ProductID: 2, Price: decimal.NewFromInt(1), Quantity: 3},
		RemoteLine{ProductID: 3, Price: decimal.NewFromInt(1), Quantity: 1},
	)
	store := NewStore(nil, nil)
	store.AddItem(ctx, product(1, "1"), 2)
	store.AddItem(ctx, product(2, "1"), 1)
	m := NewMerger(NewSyncer(store, server, SyncerOptions{}))

	if err := m.OnAuthChange(ctx, true); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := m.OnAuthChange(ctx, true); err != nil {
		t.Fatalf("second auth event: %v", err)
	}
	if server.callCount("get") != 1 || server.callCount("replace") != 1 {
		t.Fatalf("expected exactly one merge, calls=%v", server.calls)
	}
	if server.callCount("add") != 0 || server.callCount("clear") != 0 {
		t.Fatalf("merge must push with one batched call, calls=%v", server.calls)
	}

	pushed := server.replaced[0]
	quantities := map[int]int{}
	for _, l := range pushed {
		quantities[l.ProductID] = l.Quantity
	}
	if quantities[1] != 2 || quantities[2] != 4 || quantities[3] != 1 {
		t.Fatalf("unexpected pushed cart %+v", pushed)
	}
	if store.TotalItems() != 7 {
		t.Fatalf("expected local cart to hold merged result, got %d items", store.TotalItems())
	}

	if err := m.OnAuthChange(ctx, false); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if m.HasMerged() {
		t.Fatal("sign out must re-arm the merge")
	}
	if err := m.OnAuthChange(ctx, true); err != nil {
		t.Fatalf("merge after re-login: %v", err)
	}
	if server.callCount("get") != 2 {
		t.Fatalf("expected a second merge after re-login, calls=%v", server.calls)
	}
}

func TestMergerFailureSetsErrorState(t *testing.T) {
	ctx := context.Background()
	server := newFakeServer()
	server.failOn["replace"] = errors.New("server unavailable")
	store := NewStore(nil, nil)
	store.AddItem(ctx, product(1, "1"), 1)
	syncer := NewSyncer(store, server, SyncerOptions{})
	m := NewMerger(syncer)

	if err := m.OnAuthChange(ctx, true); err == nil {
		t.Fatal("expected merge error")
	}
	if syncer.Err() != "server unavailable" {
		t.Fatalf("unexpected error state %q", syncer.Err())
	}
	if !m.HasMerged() {
		t.Fatal("a failed merge still consumes the sign-in transition")
	}
	if !syncer.Authenticated() {
		t.Fatal("syncer should follow the auth state")
	}
}
