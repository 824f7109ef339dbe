package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/workflow"
)

func TestIdempotencyRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotencyStore(newRedis(t), time.Hour)

	require.NoError(t, idem.CheckAndInsert(ctx, "bkk-1", "payment"))
	err := idem.CheckAndInsert(ctx, "bkk-1", "payment")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, idem.CheckAndInsert(ctx, "bkk-1", "other"))

	require.NoError(t, idem.Delete(ctx, "bkk-1", "payment"))
	require.NoError(t, idem.CheckAndInsert(ctx, "bkk-1", "payment"))
}

func TestIdempotencyRequiresKeyAndModule(t *testing.T) {
	idem := NewIdempotencyStore(newRedis(t), 0)
	require.Error(t, idem.CheckAndInsert(context.Background(), "", "payment"))
	require.Error(t, idem.CheckAndInsert(context.Background(), "k", ""))

	var missing *IdempotencyStore
	require.Error(t, missing.CheckAndInsert(context.Background(), "k", "m"))
	require.NoError(t, missing.Delete(context.Background(), "k", "m"))
}

func TestUserSafeMessage(t *testing.T) {
	require.Equal(t, "Data tidak ditemukan", UserSafeMessage(store.ErrNotFound))
	require.Equal(t, "Status dokumen tidak mengizinkan aksi ini",
		UserSafeMessage(&workflow.TransitionError{Document: "bkk", From: "paid", Trigger: "pay"}))
	require.Equal(t, "Terjadi kesalahan pada server", UserSafeMessage(errors.New("boom")))
	require.Empty(t, UserSafeMessage(nil))
}
