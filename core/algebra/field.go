package algebra

import "math/big"

// Field is ℤ/mℤ for some modulus m. A Field over an even modulus only
// supports add/sub/neg: Mul and Exp panic, so that callers who construct a
// Field over a ring modulus (e.g. the semiprime pq used for CRT) are forced
// to type-check at construction rather than at the point of a bad operation.
type Field struct {
	modulus *big.Int
	even    bool
}

// NewField returns the field ℤ/primeℤ. Panics if prime is not (probably)
// prime, mirroring the teacher's Fp constructor.
func NewField(prime *big.Int) Field {
	if !prime.ProbablyPrime(32) {
		panic("algebra: modulus is probably not prime")
	}
	return Field{modulus: new(big.Int).Set(prime)}
}

// NewRing returns ℤ/mℤ for an arbitrary (possibly even) modulus. Used for the
// pq semiprime ring that backs secret-boolean compatibility.
func NewRing(modulus *big.Int) Field {
	even := modulus.Bit(0) == 0
	return Field{modulus: new(big.Int).Set(modulus), even: even}
}

// Modulus returns the field's modulus.
func (f Field) Modulus() *big.Int { return f.modulus }

// InField reports whether x is a canonical representative, i.e. 0 <= x < m.
func (f Field) InField(x *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(f.modulus) < 0
}

func (f Field) reduce(x *big.Int) *big.Int {
	r := new(big.Int).Mod(x, f.modulus)
	return r
}

// Add returns a+b mod m.
func (f Field) Add(a, b *big.Int) *big.Int {
	return f.reduce(new(big.Int).Add(a, b))
}

// Sub returns a-b mod m.
func (f Field) Sub(a, b *big.Int) *big.Int {
	return f.reduce(new(big.Int).Sub(a, b))
}

// Neg returns -a mod m.
func (f Field) Neg(a *big.Int) *big.Int {
	return f.reduce(new(big.Int).Neg(a))
}

// Mul returns a*b mod m. Panics if the field was constructed over an even
// ring modulus.
func (f Field) Mul(a, b *big.Int) *big.Int {
	if f.even {
		panic("algebra: multiplication is not defined over an even ring modulus")
	}
	return f.reduce(new(big.Int).Mul(a, b))
}

// Exp returns a^e mod m using big-integer exponentiation. Panics over an
// even ring modulus.
func (f Field) Exp(a, e *big.Int) *big.Int {
	if f.even {
		panic("algebra: exponentiation is not defined over an even ring modulus")
	}
	return new(big.Int).Exp(a, e, f.modulus)
}

// Inv returns the multiplicative inverse of a mod m. Panics over an even
// ring modulus, or if a has no inverse.
func (f Field) Inv(a *big.Int) *big.Int {
	if f.even {
		panic("algebra: inversion is not defined over an even ring modulus")
	}
	inv := new(big.Int).ModInverse(a, f.modulus)
	if inv == nil {
		panic("algebra: element has no inverse")
	}
	return inv
}

// Div returns a/b = a*b^-1 mod m.
func (f Field) Div(a, b *big.Int) *big.Int {
	return f.Mul(a, f.Inv(b))
}
