package equals

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

func runEquals(t *testing.T, prime algebra.SafePrime, aVal, bVal uint64) algebra.Element {
	t.Helper()
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	a := algebra.FromUint64(prime, aVal)
	b := algebra.FromUint64(prime, bVal)
	r := algebra.FromUint64(prime, 17) // preprocessed random nonzero mask
	aShares := sharer.Split(a)
	bShares := sharer.Split(b)
	rShares := sharer.Split(r)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for i, id := range parties {
		state := New(sharer, id, 1, 2, prime, aShares[i].Value, bShares[i].Value, rShares[i].Value)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	recoverable := make([]shamir.Share, 0, len(parties))
	for id, v := range results {
		recoverable = append(recoverable, shamir.Share{Party: id, Value: v})
	}
	recovered, err := sharer.Recover(recoverable)
	require.NoError(t, err)
	return recovered
}

func TestEqualsReturnsOneForEqualShares(t *testing.T) {
	got := runEquals(t, algebra.Safe64Bits, 42, 42)
	require.True(t, got.Equal(algebra.One(algebra.Safe64Bits)))
}

func TestEqualsReturnsZeroForDifferentShares(t *testing.T) {
	got := runEquals(t, algebra.Safe64Bits, 42, 43)
	require.True(t, got.Equal(algebra.Zero(algebra.Safe64Bits)))
}
