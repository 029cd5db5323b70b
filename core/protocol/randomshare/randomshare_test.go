package randomshare

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// TestRandomShareProducesConsistentDegreeTShare checks that every party's
// output share lies on the same degree-t polynomial by recovering the
// secret from two disjoint threshold-sized subsets of results and
// requiring they agree.
func TestRandomShareProducesConsistentDegreeTShare(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3, 4, 5}
	sharer := shamir.NewSharer(prime, 1, parties)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for _, id := range parties {
		state := New(sharer, id, 3, prime)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	require.Len(t, results, len(parties))

	firstSubset := []shamir.Share{
		{Party: 1, Value: results[1]},
		{Party: 2, Value: results[2]},
	}
	secondSubset := []shamir.Share{
		{Party: 3, Value: results[3]},
		{Party: 4, Value: results[4]},
	}
	a, err := sharer.Recover(firstSubset)
	require.NoError(t, err)
	b, err := sharer.Recover(secondSubset)
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestRandomShareIgnoresDuplicateDelivery(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	state := New(sharer, parties[0], 1, prime)
	driver := statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	_, err := driver.Start()
	require.NoError(t, err)

	msg := Message{From: parties[1], RoundID: 1, Share: algebra.FromUint64(prime, 9)}
	_, err = driver.Deliver(msg)
	require.NoError(t, err)
	require.False(t, driver.Done())

	out, err := driver.Deliver(msg)
	require.NoError(t, err)
	require.Empty(t, out)
	require.False(t, driver.Done())
}
