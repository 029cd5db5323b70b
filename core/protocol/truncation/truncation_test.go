package truncation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// TestTruncDeterministicMatchesMaskedOpenFormula drives TRUNC with a
// concrete secret and mask and checks the reconstructed result against the
// same floor((x+r)>>bits) - (r>>bits) formula the state machine computes,
// confirming the masked-open wiring (not the statistical accuracy of the
// fixed-point approximation truncation is built on top of elsewhere).
func TestTruncDeterministicMatchesMaskedOpenFormula(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	const bits = 4
	x := algebra.FromUint64(prime, 1000)
	r := algebra.FromUint64(prime, 50)
	rShifted := algebra.FromUint64(prime, 50>>bits)

	xShares := sharer.Split(x)
	rShares := sharer.Split(r)
	rShiftedShares := sharer.Split(rShifted)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for i, id := range parties {
		state := New(sharer, id, 7, prime, Trunc, bits, xShares[i].Value, rShares[i].Value, rShiftedShares[i].Value)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	recoverable := make([]shamir.Share, 0, len(parties))
	for id, v := range results {
		recoverable = append(recoverable, shamir.Share{Party: id, Value: v})
	}
	recovered, err := sharer.Recover(recoverable)
	require.NoError(t, err)

	want := algebra.FromUint64(prime, (1000+50)>>bits-(50>>bits))
	require.True(t, want.Equal(recovered))
}
