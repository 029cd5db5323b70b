package randombit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// TestRandomBitProducesZeroOrOne drives several RANDOM-BIT instances to
// completion over a prime width satisfying p=3 mod 4 (required by the
// square-root trick) and checks the jointly reconstructed output, when not
// degenerate, is always 0 or 1.
func TestRandomBitProducesZeroOrOne(t *testing.T) {
	prime := algebra.Safe256Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	zero := algebra.Zero(prime)
	one := algebra.One(prime)

	for round := uint32(0); round < 5; round++ {
		drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, Result], len(parties))
		for _, id := range parties {
			state := New(sharer, id, round*10, prime)
			drivers[id] = statemachine.NewDriver[*State, PartyID, Message, Result](state)
		}

		results := prototest.RunToCompletion(t, drivers)

		degenerate := false
		shares := make([]shamir.Share, 0, len(parties))
		for id, r := range results {
			if r.Degenerate {
				degenerate = true
				break
			}
			shares = append(shares, shamir.Share{Party: id, Value: r.BitShare})
		}
		if degenerate {
			continue
		}
		bit, err := sharer.Recover(shares)
		require.NoError(t, err)
		require.True(t, bit.Equal(zero) || bit.Equal(one), "recovered non-bit value %v", bit.Value())
	}
}
