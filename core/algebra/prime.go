// Package algebra implements modular arithmetic over safe primes and the
// GF(256) ring used for boolean secret sharing.
package algebra

import "math/big"

// SafePrime identifies one of the three compile-time prime widths that the
// rest of the system is generic over. Components that are generic over a
// prime choose one member of this set at construction time; there is no
// per-operation dynamic dispatch in hot math paths.
type SafePrime uint8

const (
	// Safe64Bits is the smallest supported safe prime, used for tests and
	// low-latency demos where 64 bits of statistical security is enough.
	Safe64Bits SafePrime = iota
	// Safe128Bits is the default production width.
	Safe128Bits
	// Safe256Bits is used for operations that need margin against larger
	// adversaries (e.g. long-lived ECDSA auxiliary material).
	Safe256Bits
)

func (p SafePrime) String() string {
	switch p {
	case Safe64Bits:
		return "Safe64Bits"
	case Safe128Bits:
		return "Safe128Bits"
	case Safe256Bits:
		return "Safe256Bits"
	default:
		return "SafePrime(?)"
	}
}

// primeHex holds the canonical safe prime for each width: p such that
// (p-1)/2 is also prime. These are fixed, well-known values; they are not
// generated at runtime.
var primeHex = map[SafePrime]string{
	// 64-bit safe prime, used for tests only.
	Safe64Bits: "fffffffffffffa43",
	// 128-bit safe prime.
	Safe128Bits: "ffffffffffffffffffffffffffffabfb",
	// 256-bit safe prime (secp256k1-ish size, unrelated to the curve).
	Safe256Bits: "fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffd215b",
}

// Spec returns the field and ring parameters associated with a SafePrime:
// the prime p, its Sophie-Germain sibling q = (p-1)/2, the semiprime pq used
// for the CRT boolean ring, and a generator of the multiplicative group of p.
type Spec struct {
	Prime     *big.Int
	SiblingQ  *big.Int
	SemiPrime *big.Int
	Generator *big.Int
}

var specCache = map[SafePrime]Spec{}

// SpecFor returns the cached Spec for a SafePrime, computing it on first use.
func SpecFor(sp SafePrime) Spec {
	if spec, ok := specCache[sp]; ok {
		return spec
	}
	hex, ok := primeHex[sp]
	if !ok {
		panic("algebra: unknown safe prime width")
	}
	p, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		panic("algebra: malformed embedded prime")
	}
	q := new(big.Int).Sub(p, big.NewInt(1))
	q.Rsh(q, 1)
	pq := new(big.Int).Mul(p, q)
	gen := big.NewInt(2)
	spec := Spec{Prime: p, SiblingQ: q, SemiPrime: pq, Generator: gen}
	specCache[sp] = spec
	return spec
}

// Bits returns the bit length of the prime for this width, used to size
// random-bitwise decompositions.
func (sp SafePrime) Bits() int {
	return SpecFor(sp).Prime.BitLen()
}
