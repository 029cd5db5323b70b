// Package shamir implements Shamir secret sharing over the prime fields in
// core/algebra: splitting a secret into shares for a fixed set of parties
// and recovering a secret from a threshold-sized subset of shares via
// Lagrange interpolation at x=0.
package shamir

import (
	"fmt"
	"slices"
	"sort"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
)

// PartyID identifies a party by its Shamir evaluation point. Nonzero by
// construction: x=0 is reserved for the secret itself.
type PartyID uint32

// Share is one party's evaluation of the sharing polynomial.
type Share struct {
	Party PartyID
	Value algebra.Element
}

// Sharer holds the fixed configuration needed to split and recover shares
// for one computation: the prime field, the polynomial degree (the
// corruption threshold t, tolerating up to t colluding parties), and the
// sorted list of party evaluation points.
type Sharer struct {
	prime   algebra.SafePrime
	degree  int
	parties []PartyID
}

// NewSharer builds a Sharer for a threshold t over the given party set. The
// party list is sorted and de-duplicated.
func NewSharer(prime algebra.SafePrime, degree int, parties []PartyID) Sharer {
	sorted := append([]PartyID(nil), parties...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return Sharer{prime: prime, degree: degree, parties: slices.Compact(sorted)}
}

// Degree returns the sharing polynomial's degree.
func (s Sharer) Degree() int { return s.degree }

// Parties returns the sorted party set this Sharer was built for.
func (s Sharer) Parties() []PartyID { return s.parties }

func partyElement(prime algebra.SafePrime, id PartyID) algebra.Element {
	return algebra.FromUint64(prime, uint64(id))
}

// Split generates one share per configured party from a fresh random
// polynomial with the given secret as its constant term.
func (s Sharer) Split(secret algebra.Element) []Share {
	poly := algebra.NewRandomWithSecret(s.prime, secret, s.degree)
	shares := make([]Share, len(s.parties))
	for i, id := range s.parties {
		shares[i] = Share{Party: id, Value: poly.Evaluate(partyElement(s.prime, id))}
	}
	return shares
}

// SplitVector splits a batch of secrets, returning one slice of shares per
// secret in input order. Each secret gets its own independent random
// polynomial.
func (s Sharer) SplitVector(secrets []algebra.Element) [][]Share {
	out := make([][]Share, len(secrets))
	for i, secret := range secrets {
		out[i] = s.Split(secret)
	}
	return out
}

// Recover reconstructs the secret from a set of shares via Lagrange
// interpolation at x=0. Requires at least degree+1 shares from distinct
// parties; the caller is responsible for supplying a threshold-sized set.
func (s Sharer) Recover(shares []Share) (algebra.Element, error) {
	if len(shares) < s.degree+1 {
		return algebra.Element{}, fmt.Errorf("shamir: need at least %d shares to recover, got %d", s.degree+1, len(shares))
	}
	if err := requireDistinctParties(shares); err != nil {
		return algebra.Element{}, err
	}
	result := algebra.Zero(s.prime)
	for i, share := range shares {
		coeff := s.lagrangeCoefficientAtZero(shares, i)
		result = result.Add(share.Value.Mul(coeff))
	}
	return result, nil
}

// lagrangeCoefficientAtZero computes the i-th Lagrange basis polynomial of
// the supplied shares' x-coordinates, evaluated at x=0:
// prod_{j!=i} (0 - x_j) / (x_i - x_j).
func (s Sharer) lagrangeCoefficientAtZero(shares []Share, i int) algebra.Element {
	xi := partyElement(s.prime, shares[i].Party)
	numerator := algebra.One(s.prime)
	denominator := algebra.One(s.prime)
	for j, other := range shares {
		if j == i {
			continue
		}
		xj := partyElement(s.prime, other.Party)
		numerator = numerator.Mul(xj.Neg())
		denominator = denominator.Mul(xi.Sub(xj))
	}
	return numerator.Div(denominator)
}

// RecoverVector reconstructs a batch of secrets, given one share slice per
// output position, each containing shares from the same party set.
func (s Sharer) RecoverVector(shareBatches [][]Share) ([]algebra.Element, error) {
	out := make([]algebra.Element, len(shareBatches))
	for i, shares := range shareBatches {
		secret, err := s.Recover(shares)
		if err != nil {
			return nil, fmt.Errorf("shamir: recovering element %d: %w", i, err)
		}
		out[i] = secret
	}
	return out, nil
}

func requireDistinctParties(shares []Share) error {
	seen := make(map[PartyID]struct{}, len(shares))
	for _, share := range shares {
		if _, ok := seen[share.Party]; ok {
			return fmt.Errorf("shamir: duplicate share from party %d", share.Party)
		}
		seen[share.Party] = struct{}{}
	}
	return nil
}
