package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stocktally/stocktally/internal/shared"
)

func newTestTokenStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTokenStore(client, time.Hour), mr
}

func TestTokenIssueAndVerify(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, store.Verify(ctx, token))
	require.ErrorIs(t, store.Verify(ctx, "unknown"), shared.ErrTokenInvalid)
	require.ErrorIs(t, store.Verify(ctx, ""), shared.ErrTokenInvalid)
}

func TestTokenExpiry(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	require.ErrorIs(t, store.Verify(ctx, token), shared.ErrTokenInvalid)
}

func TestTokenRevoke(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))
	require.ErrorIs(t, store.Verify(ctx, token), shared.ErrTokenInvalid)
}
