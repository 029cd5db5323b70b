package shamir

import (
	"crypto/rand"
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
)

// BooleanShare is one party's evaluation of a GF(2^8) sharing polynomial,
// used for boolean secrets.
type BooleanShare struct {
	Party PartyID
	Value algebra.GF256
}

// BooleanSharer mirrors Sharer but operates over GF(2^8) for boolean
// secret sharing.
type BooleanSharer struct {
	degree  int
	parties []PartyID
}

// NewBooleanSharer builds a BooleanSharer for the given threshold and party
// set, reusing the same party evaluation points as any companion Sharer so
// boolean and arithmetic shares of one computation interpolate over the
// same x-coordinates.
func NewBooleanSharer(degree int, parties []PartyID) BooleanSharer {
	return BooleanSharer{degree: degree, parties: append([]PartyID(nil), parties...)}
}

func gf256PartyElement(id PartyID) algebra.GF256 {
	// Party points live in GF(2^8); ids above 255 are unsupported for
	// boolean sharing (the corruption threshold makes this harmless since
	// clusters are a handful of parties).
	return algebra.GF256(uint8(id))
}

func randomByte() byte {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("shamir: failed to draw randomness: " + err.Error())
	}
	return b[0]
}

// Split generates one boolean share per configured party.
func (s BooleanSharer) Split(secret algebra.GF256) []BooleanShare {
	poly := algebra.NewGF256RandomWithSecret(secret, s.degree, randomByte)
	shares := make([]BooleanShare, len(s.parties))
	for i, id := range s.parties {
		shares[i] = BooleanShare{Party: id, Value: poly.Evaluate(gf256PartyElement(id))}
	}
	return shares
}

// Recover reconstructs a boolean secret via Lagrange interpolation at x=0
// over GF(2^8).
func (s BooleanSharer) Recover(shares []BooleanShare) (algebra.GF256, error) {
	if len(shares) < s.degree+1 {
		return 0, fmt.Errorf("shamir: need at least %d boolean shares to recover, got %d", s.degree+1, len(shares))
	}
	result := algebra.ZeroGF256
	for i := range shares {
		coeff := booleanLagrangeCoefficientAtZero(shares, i)
		result = result.Add(shares[i].Value.Mul(coeff))
	}
	return result, nil
}

func booleanLagrangeCoefficientAtZero(shares []BooleanShare, i int) algebra.GF256 {
	xi := gf256PartyElement(shares[i].Party)
	numerator := algebra.OneGF256
	denominator := algebra.OneGF256
	for j, other := range shares {
		if j == i {
			continue
		}
		xj := gf256PartyElement(other.Party)
		// Subtraction is XOR in GF(2^8), so 0-x == x.
		numerator = numerator.Mul(xj)
		denominator = denominator.Mul(xi.Sub(xj))
	}
	return numerator.Mul(denominator.Inv())
}
