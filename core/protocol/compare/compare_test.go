package compare

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/prototest"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// buildDigitShares splits plaintext secret-value bits (MSB first, matching
// comparandBits' own indexing) into per-party QuaternaryDigit share
// triples, the same dealer-generated preprocessing material the real
// protocol expects, just constructed directly instead of via an offline
// generation protocol.
func buildDigitShares(t *testing.T, sharer shamir.Sharer, prime algebra.SafePrime, secret *big.Int, numDigits int) map[PartyID][]QuaternaryDigit {
	t.Helper()
	bits := comparandBits(secret, numDigits*2)
	out := make(map[PartyID][]QuaternaryDigit, len(sharer.Parties()))
	for _, id := range sharer.Parties() {
		out[id] = make([]QuaternaryDigit, numDigits)
	}
	for i := 0; i < numDigits; i++ {
		r1 := uint64(0)
		if bits[2*i] {
			r1 = 1
		}
		r0 := uint64(0)
		if bits[2*i+1] {
			r0 = 1
		}
		rr := r0 * r1

		r1Shares := sharer.Split(algebra.FromUint64(prime, r1))
		r0Shares := sharer.Split(algebra.FromUint64(prime, r0))
		rrShares := sharer.Split(algebra.FromUint64(prime, rr))

		for j, id := range sharer.Parties() {
			out[id][i] = QuaternaryDigit{R0: r0Shares[j].Value, R1: r1Shares[j].Value, RR: rrShares[j].Value}
		}
	}
	return out
}

func runCompare(t *testing.T, secret, comparand int64) algebra.Element {
	t.Helper()
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	const numDigits = 2 // 4-bit comparands
	digitShares := buildDigitShares(t, sharer, prime, big.NewInt(secret), numDigits)

	drivers := make(map[PartyID]*statemachine.Driver[*State, PartyID, Message, algebra.Element], len(parties))
	for _, id := range parties {
		state, err := New(sharer, id, 100, prime, big.NewInt(comparand), digitShares[id])
		require.NoError(t, err)
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

// The protocol's own per-digit closed form (see buildComparator) computes,
// digit by digit from the most significant end, whether the public
// comparand is less than the secret value, so the reconstructed share is 1
// exactly when comparand < secret.
func TestCompareComparandLessThanSecret(t *testing.T) {
	got := runCompare(t, 10, 3)
	require.True(t, got.Equal(algebra.One(algebra.Safe64Bits)))
}

func TestCompareComparandGreaterThanSecret(t *testing.T) {
	got := runCompare(t, 3, 10)
	require.True(t, got.Equal(algebra.Zero(algebra.Safe64Bits)))
}

func TestCompareComparandEqualsSecret(t *testing.T) {
	got := runCompare(t, 7, 7)
	require.True(t, got.Equal(algebra.Zero(algebra.Safe64Bits)))
}
