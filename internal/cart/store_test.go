package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/cart"
)

func newStore(t *testing.T) (*cart.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &cart.Store{Client: client, TTL: time.Hour}, mr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	state := cart.State{
		Committed: cart.Cart{
			Lines: []cart.Line{{ItemID: itemX, ItemName: "canvas tent", Quantity: 2}},
			Range: rng(t, "2024-06-01", "2024-06-05"),
		},
		Edit: &cart.EditState{
			Local:     []cart.Line{{ItemID: itemX, ItemName: "canvas tent", Quantity: 3}},
			Candidate: rng(t, "2024-06-01", "2024-06-07"),
		},
	}

	require.NoError(t, store.Save(ctx, "user-1", state))

	loaded, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, state.Committed, loaded.Committed)
	require.NotNil(t, loaded.Edit)
	require.Equal(t, 3, loaded.Edit.Local[0].Quantity)
	require.Equal(t, rng(t, "2024-06-01", "2024-06-07"), loaded.Edit.Candidate)
}

func TestStoreMissingKeyYieldsZeroState(t *testing.T) {
	store, _ := newStore(t)

	state, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	require.True(t, state.Committed.IsEmpty())
	require.Nil(t, state.Edit)
}

func TestStoreDelete(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "user-1", cart.State{}))
	require.True(t, mr.Exists("cart:user-1"))

	require.NoError(t, store.Delete(ctx, "user-1"))
	require.False(t, mr.Exists("cart:user-1"))
}

func TestStoreSetsTTL(t *testing.T) {
	store, mr := newStore(t)

	require.NoError(t, store.Save(context.Background(), "user-1", cart.State{}))
	require.Equal(t, time.Hour, mr.TTL("cart:user-1"))
}
