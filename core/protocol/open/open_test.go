package open

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

func TestOpenRecoversSharedSecret(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3, 4}
	sharer := shamir.NewSharer(prime, 1, parties)

	secret := algebra.FromUint64(prime, 123)
	shares := sharer.Split(secret)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for i, id := range parties {
		state := New(sharer, id, 9, shares[i].Value)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	for id, got := range results {
		require.Truef(t, secret.Equal(got), "party %d: got %v, want %v", id, got.Value(), secret.Value())
	}
}

func TestOpenCompletesAtThresholdWithoutEveryParty(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	secret := algebra.FromUint64(prime, 55)
	shares := sharer.Split(secret)

	state := New(sharer, parties[0], 2, shares[0].Value)
	driver := statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	_, err := driver.Start()
	require.NoError(t, err)
	require.False(t, driver.Done())

	_, err = driver.Deliver(Message{From: parties[1], RoundID: 2, Share: shares[1].Value})
	require.NoError(t, err)
	require.True(t, driver.Done())
	require.True(t, secret.Equal(driver.Result()))
}
