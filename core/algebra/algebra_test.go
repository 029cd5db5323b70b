package algebra

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElementArithmetic(t *testing.T) {
	sp := Safe64Bits
	a := FromUint64(sp, 17)
	b := FromUint64(sp, 5)

	require.True(t, a.Add(b).Equal(FromUint64(sp, 22)))
	require.True(t, a.Sub(b).Equal(FromUint64(sp, 12)))
	require.True(t, a.Mul(b).Equal(FromUint64(sp, 85)))
	require.True(t, a.Neg().Add(a).IsZero())
	require.True(t, a.Div(b).Mul(b).Equal(a))
}

func TestElementExpAndInv(t *testing.T) {
	sp := Safe64Bits
	a := FromUint64(sp, 9)
	require.True(t, a.Exp(big.NewInt(2)).Equal(a.Mul(a)))
	require.True(t, a.Mul(a.Inv()).Equal(One(sp)))
}

func TestElementModOperatesOnCanonicalValues(t *testing.T) {
	sp := Safe64Bits
	a := FromUint64(sp, 17)
	m := FromUint64(sp, 5)
	require.True(t, a.Mod(m).Equal(FromUint64(sp, 2)))
}

func TestElementBytesRoundTrip(t *testing.T) {
	sp := Safe256Bits
	a := FromUint64(sp, 123456789)
	got := FromBytes(sp, a.ToBytes())
	require.True(t, a.Equal(got))
}

func TestMulMontgomeryMatchesNormalMultiply(t *testing.T) {
	sp := Safe128Bits
	a := FromUint64(sp, 1234567)
	b := FromUint64(sp, 7654321)
	want := a.Mul(b)

	got := MulMontgomery(sp, a.ToMontgomery(), b.ToMontgomery())
	require.True(t, want.Equal(got))
}

func TestElementMismatchedPrimesPanic(t *testing.T) {
	defer func() {
		require.NotNil(t, recover())
	}()
	FromUint64(Safe64Bits, 1).Add(FromUint64(Safe128Bits, 1))
}

func TestPolynomialEvaluateAtZeroIsSecret(t *testing.T) {
	sp := Safe64Bits
	secret := FromUint64(sp, 99)
	p := NewRandomWithSecret(sp, secret, 3)
	require.Equal(t, 3, p.Degree())
	require.True(t, secret.Equal(p.Secret()))
	require.True(t, secret.Equal(p.Evaluate(Zero(sp))))
}

func TestGF256AddIsXOR(t *testing.T) {
	a := GF256(0x3C)
	b := GF256(0x0F)
	require.Equal(t, GF256(0x33), a.Add(b))
	require.Equal(t, a, a.Add(b).Add(b))
}

func TestGF256MulInvRoundTrip(t *testing.T) {
	a := GF256(0x57)
	require.Equal(t, OneGF256, a.Mul(a.Inv()))
}

func TestGF256PolynomialEvaluateAtZeroIsSecret(t *testing.T) {
	secret := GF256(0x42)
	i := 0
	p := NewGF256RandomWithSecret(secret, 2, func() byte {
		i++
		return byte(i * 7)
	})
	require.Equal(t, secret, p.Evaluate(ZeroGF256))
}

func TestRingElementCRTRoundTrip(t *testing.T) {
	sp := Safe128Bits
	q := SpecFor(sp).SiblingQ
	x := new(big.Int).Add(q, big.NewInt(5))
	r := FromCanonical(sp, x)
	require.Equal(t, 0, r.Canonical().Cmp(x))
}

func TestRingElementAddCombinesResiduesIndependently(t *testing.T) {
	sp := Safe128Bits
	a := NewRingElement(sp, big.NewInt(10), 1)
	b := NewRingElement(sp, big.NewInt(20), 1)
	sum := a.Add(b)
	require.Equal(t, 0, sum.ModQ().Cmp(big.NewInt(30)))
	require.Equal(t, uint8(0), sum.Mod2())
}
