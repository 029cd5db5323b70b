package mult

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

func TestMultRecoversProductOfSharedSecrets(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	a := algebra.FromUint64(prime, 7)
	b := algebra.FromUint64(prime, 6)
	aShares := sharer.Split(a)
	bShares := sharer.Split(b)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for i, id := range parties {
		state := New(sharer, id, 1, aShares[i].Value, bShares[i].Value)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	recoverable := make([]shamir.Share, 0, len(parties))
	for id, got := range results {
		recoverable = append(recoverable, shamir.Share{Party: id, Value: got})
	}
	recovered, err := sharer.Recover(recoverable)
	require.NoError(t, err)

	want := a.Mul(b)
	require.Truef(t, want.Equal(recovered), "got %v, want %v", recovered.Value(), want.Value())
}

func TestMultRejectsStaleGenerationMessages(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	a := algebra.FromUint64(prime, 2)
	b := algebra.FromUint64(prime, 3)
	aShares := sharer.Split(a)
	bShares := sharer.Split(b)

	state := New(sharer, parties[0], 5, aShares[0].Value, bShares[0].Value)
	driver := statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	_, err := driver.Start()
	require.NoError(t, err)

	out, err := driver.Deliver(Message{From: parties[1], RoundID: 4, Share: aShares[1].Value})
	require.NoError(t, err)
	require.Empty(t, out)
	require.False(t, driver.Done())
}
