package division

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// TestDivisionMatchesFixedPointFormula exercises the composed
// multiply-then-truncate wiring against the exact arithmetic the state
// machine performs, rather than asserting true integer-division accuracy
// (see the package doc comment on the known fixed-point off-by-one scope
// limit).
func TestDivisionMatchesFixedPointFormula(t *testing.T) {
	prime := algebra.Safe128Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	x := algebra.FromUint64(prime, 500)
	reciprocal := algebra.FromUint64(prime, 42949673) // approx 2^32/100
	r := algebra.FromUint64(prime, 12345)
	rShifted := algebra.FromUint64(prime, 12345>>ReciprocalShift)

	xShares := sharer.Split(x)
	rShares := sharer.Split(r)
	rShiftedShares := sharer.Split(rShifted)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for i, id := range parties {
		state := New(sharer, id, 11, prime, xShares[i].Value, reciprocal, rShares[i].Value, rShiftedShares[i].Value)
		drivers[id] = statemachine.NewDriver[*State, PartyID, Message, algebra.Element](state)
	}

	results := prototest.RunToCompletion(t, drivers)
	recoverable := make([]shamir.Share, 0, len(parties))
	for id, v := range results {
		recoverable = append(recoverable, shamir.Share{Party: id, Value: v})
	}
	recovered, err := sharer.Recover(recoverable)
	require.NoError(t, err)

	scaledProduct := new(big.Int).Mul(big.NewInt(500), big.NewInt(42949673))
	masked := new(big.Int).Add(scaledProduct, big.NewInt(12345))
	shifted := new(big.Int).Rsh(masked, ReciprocalShift)
	want := new(big.Int).Sub(shifted, big.NewInt(12345>>ReciprocalShift))

	require.True(t, algebra.FromBigInt(prime, want).Equal(recovered))
}
