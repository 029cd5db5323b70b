package algebra

import (
	"crypto/rand"
	"math/big"
)

// Polynomial is a dense univariate polynomial over ℤ/pℤ, stored lowest
// coefficient first, mirroring the coefficient layout used for Shamir
// sharing (coefficients[0] is the secret).
type Polynomial struct {
	prime        SafePrime
	coefficients []Element
}

// NewPolynomial wraps a coefficient slice, lowest-degree term first.
func NewPolynomial(sp SafePrime, coefficients []Element) Polynomial {
	return Polynomial{prime: sp, coefficients: coefficients}
}

// NewRandomWithSecret returns a polynomial of the given degree whose
// constant term is secret and whose remaining coefficients are drawn
// uniformly at random. degree must be >= 0.
func NewRandomWithSecret(sp SafePrime, secret Element, degree int) Polynomial {
	coeffs := make([]Element, degree+1)
	coeffs[0] = secret
	prime := SpecFor(sp).Prime
	for i := 1; i <= degree; i++ {
		coeffs[i] = FromBigInt(sp, randomBigInt(prime))
	}
	return Polynomial{prime: sp, coefficients: coeffs}
}

// NewRandom returns a polynomial of the given degree with a uniformly
// random constant term, used for generating preprocessing material (e.g.
// random integers/bits) that has no meaningful "secret" origin.
func NewRandom(sp SafePrime, degree int) Polynomial {
	prime := SpecFor(sp).Prime
	return NewRandomWithSecret(sp, FromBigInt(sp, randomBigInt(prime)), degree)
}

func randomBigInt(max *big.Int) *big.Int {
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic("algebra: failed to draw randomness: " + err.Error())
	}
	return n
}

// Degree returns the polynomial's degree (len(coefficients)-1).
func (p Polynomial) Degree() int { return len(p.coefficients) - 1 }

// Secret returns the constant term.
func (p Polynomial) Secret() Element { return p.coefficients[0] }

// Evaluate computes p(x) via Horner's method.
func (p Polynomial) Evaluate(x Element) Element {
	result := Zero(p.prime)
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p.coefficients[i])
	}
	return result
}
