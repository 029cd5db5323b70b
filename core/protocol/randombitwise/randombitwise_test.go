package randombitwise

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// TestRandomBitwiseSizedElementMatchesItsBits reconstructs both the random
// element and its per-bit shares and checks the element equals the
// little-endian sum of its bits, the invariant the whole protocol exists to
// establish.
func TestRandomBitwiseSizedElementMatchesItsBits(t *testing.T) {
	prime := algebra.Safe256Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	const size = 4
	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, Result], len(parties))
	for _, id := range parties {
		state := New(sharer, id, 0, prime, Sized, size)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, Result](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	require.Len(t, results, len(parties))

	elementShares := make([]shamir.Share, 0, len(parties))
	bitShares := make([][]shamir.Share, size)
	for id, r := range results {
		require.Len(t, r.Bits, size)
		elementShares = append(elementShares, shamir.Share{Party: id, Value: r.Element})
		for i, b := range r.Bits {
			bitShares[i] = append(bitShares[i], shamir.Share{Party: id, Value: b})
		}
	}

	element, err := sharer.Recover(elementShares)
	require.NoError(t, err)

	two := algebra.FromUint64(prime, 2)
	sum := algebra.Zero(prime)
	power := algebra.One(prime)
	for i := 0; i < size; i++ {
		bit, err := sharer.Recover(bitShares[i])
		require.NoError(t, err)
		require.True(t, bit.Equal(algebra.Zero(prime)) || bit.Equal(algebra.One(prime)))
		sum = sum.Add(bit.Mul(power))
		power = power.Mul(two)
	}
	require.True(t, element.Equal(sum))
}
