package shamir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
)

func TestSplitRecoverRoundTrip(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []PartyID{1, 2, 3, 4, 5}
	sharer := NewSharer(prime, 2, parties)

	secret := algebra.FromUint64(prime, 424242)
	shares := sharer.Split(secret)
	require.Len(t, shares, len(parties))

	recovered, err := sharer.Recover(shares[:3])
	require.NoError(t, err)
	require.True(t, secret.Equal(recovered))
}

func TestRecoverAnyThresholdSubsetAgrees(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []PartyID{1, 2, 3, 4, 5}
	sharer := NewSharer(prime, 2, parties)

	secret := algebra.FromUint64(prime, 9001)
	shares := sharer.Split(secret)

	a, err := sharer.Recover([]Share{shares[0], shares[1], shares[2]})
	require.NoError(t, err)
	b, err := sharer.Recover([]Share{shares[2], shares[3], shares[4]})
	require.NoError(t, err)
	require.True(t, a.Equal(b))
	require.True(t, secret.Equal(a))
}

func TestRecoverRejectsBelowThreshold(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []PartyID{1, 2, 3, 4}
	sharer := NewSharer(prime, 2, parties)

	secret := algebra.FromUint64(prime, 7)
	shares := sharer.Split(secret)

	_, err := sharer.Recover(shares[:2])
	require.Error(t, err)
}

func TestRecoverRejectsDuplicateParty(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []PartyID{1, 2, 3}
	sharer := NewSharer(prime, 1, parties)

	secret := algebra.FromUint64(prime, 7)
	shares := sharer.Split(secret)

	_, err := sharer.Recover([]Share{shares[0], shares[0]})
	require.Error(t, err)
}

func TestSplitVectorRecoverVector(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []PartyID{1, 2, 3}
	sharer := NewSharer(prime, 1, parties)

	secrets := []algebra.Element{
		algebra.FromUint64(prime, 1),
		algebra.FromUint64(prime, 2),
		algebra.FromUint64(prime, 3),
	}
	batches := sharer.SplitVector(secrets)
	require.Len(t, batches, len(secrets))

	recovered, err := sharer.RecoverVector(batches)
	require.NoError(t, err)
	require.Len(t, recovered, len(secrets))
	for i, want := range secrets {
		require.True(t, want.Equal(recovered[i]))
	}
}

func TestNewSharerSortsParties(t *testing.T) {
	sharer := NewSharer(algebra.Safe64Bits, 1, []PartyID{3, 1, 2})
	require.Equal(t, []PartyID{1, 2, 3}, sharer.Parties())
}

func TestBooleanSharerSplitRecoverRoundTrip(t *testing.T) {
	parties := []PartyID{1, 2, 3}
	sharer := NewBooleanSharer(1, parties)

	secret := algebra.GF256(0xAB)
	shares := sharer.Split(secret)
	require.Len(t, shares, len(parties))

	recovered, err := sharer.Recover(shares)
	require.NoError(t, err)
	require.Equal(t, secret, recovered)
}

func TestBooleanSharerRecoverRejectsBelowThreshold(t *testing.T) {
	parties := []PartyID{1, 2, 3}
	sharer := NewBooleanSharer(1, parties)

	secret := algebra.GF256(0x11)
	shares := sharer.Split(secret)

	_, err := sharer.Recover(shares[:1])
	require.Error(t, err)
}
