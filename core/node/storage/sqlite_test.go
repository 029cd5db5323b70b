package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeductAndRecordNonceRejectsReplay(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.AddFunds(ctx, "alice", 500))

	require.NoError(t, db.DeductAndRecordNonce(ctx, "alice", "nonce-1", 100, 1))

	balance, err := db.Balance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(400), balance)

	err = db.DeductAndRecordNonce(ctx, "alice", "nonce-1", 100, 2)
	require.ErrorIs(t, err, ErrNonceReplayed)

	balance, err = db.Balance(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(400), balance, "a rejected replay must not deduct again")
}

func TestDeductAndRecordNonceRejectsInsufficientBalance(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.AddFunds(ctx, "bob", 10))

	err = db.DeductAndRecordNonce(ctx, "bob", "nonce-2", 100, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err := db.Balance(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)
}

func TestPreprocessingOffsetsRoundTrip(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	used, generated, err := db.PreprocessingOffsets(ctx, "random_element")
	require.NoError(t, err)
	require.Zero(t, used)
	require.Zero(t, generated)

	require.NoError(t, db.SavePreprocessingOffsets(ctx, "random_element", 5, 20))
	used, generated, err = db.PreprocessingOffsets(ctx, "random_element")
	require.NoError(t, err)
	require.Equal(t, uint64(5), used)
	require.Equal(t, uint64(20), generated)
}
