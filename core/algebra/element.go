package algebra

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Element is a value in ℤ/pℤ for a fixed SafePrime p. The normal
// (raw-integer) representation is the source of truth for serialization and
// equality; arithmetic is performed directly on it. A Montgomery-form
// multiply is offered separately via MulMontgomery for callers on a hot
// path who already hold operands in that domain.
type Element struct {
	prime SafePrime
	val   *big.Int // always normal form.
}

// montgomeryR returns R = 2^k mod p, where k is the prime's exact bit
// length.
func montgomeryR(sp SafePrime) *big.Int {
	bits := sp.Bits()
	r := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return new(big.Int).Mod(r, SpecFor(sp).Prime)
}

// Zero returns the additive identity for the given prime width.
func Zero(sp SafePrime) Element {
	return Element{prime: sp, val: big.NewInt(0)}
}

// One returns the multiplicative identity for the given prime width.
func One(sp SafePrime) Element {
	return Element{prime: sp, val: big.NewInt(1)}
}

// FromUint64 constructs a normal-form element by reducing n modulo the
// field's prime.
func FromUint64(sp SafePrime, n uint64) Element {
	v := new(big.Int).SetUint64(n)
	v.Mod(v, SpecFor(sp).Prime)
	return Element{prime: sp, val: v}
}

// FromBigInt reduces x modulo the field's prime and returns the element.
func FromBigInt(sp SafePrime, x *big.Int) Element {
	v := new(big.Int).Mod(x, SpecFor(sp).Prime)
	return Element{prime: sp, val: v}
}

// Prime returns the SafePrime width this element belongs to.
func (e Element) Prime() SafePrime { return e.prime }

// Value returns the normal-form representative as a *big.Int. Callers must
// not mutate the returned value.
func (e Element) Value() *big.Int { return e.val }

func (e Element) field() Field { return NewField(SpecFor(e.prime).Prime) }

// ToMontgomery returns e's value scaled into Montgomery domain: e*R mod p.
func (e Element) ToMontgomery() *big.Int {
	return e.field().Mul(e.val, montgomeryR(e.prime))
}

// FromMontgomery recovers the normal-form Element from a Montgomery-domain
// value by dividing out R.
func FromMontgomery(sp SafePrime, mont *big.Int) Element {
	f := NewField(SpecFor(sp).Prime)
	rInv := f.Inv(montgomeryR(sp))
	return Element{prime: sp, val: f.Mul(mont, rInv)}
}

// Add returns e+other, computed in normal form.
func (e Element) Add(other Element) Element {
	e.mustMatch(other)
	return Element{prime: e.prime, val: e.field().Add(e.val, other.val)}
}

// Sub returns e-other, computed in normal form.
func (e Element) Sub(other Element) Element {
	e.mustMatch(other)
	return Element{prime: e.prime, val: e.field().Sub(e.val, other.val)}
}

// Neg returns -e, computed in normal form.
func (e Element) Neg() Element {
	return Element{prime: e.prime, val: e.field().Neg(e.val)}
}

// Mul returns e*other, computed in normal form.
func (e Element) Mul(other Element) Element {
	e.mustMatch(other)
	return Element{prime: e.prime, val: e.field().Mul(e.val, other.val)}
}

// MulMontgomery multiplies two Montgomery-domain values (as produced by
// ToMontgomery) and returns the normal-form product directly, skipping the
// round trip through normal form on either operand. The product aR*bR
// carries R twice, so it is scaled by R^-1 twice.
func MulMontgomery(sp SafePrime, aMont, bMont *big.Int) Element {
	f := NewField(SpecFor(sp).Prime)
	rInv := f.Inv(montgomeryR(sp))
	product := f.Mul(aMont, bMont)
	return Element{prime: sp, val: f.Mul(f.Mul(product, rInv), rInv)}
}

// Exp returns e^k mod p for a non-negative big-integer exponent k.
func (e Element) Exp(k *big.Int) Element {
	return Element{prime: e.prime, val: e.field().Exp(e.val, k)}
}

// Inv returns the multiplicative inverse of e.
func (e Element) Inv() Element {
	return Element{prime: e.prime, val: e.field().Inv(e.val)}
}

// Div returns e/other.
func (e Element) Div(other Element) Element {
	return e.Mul(other.Inv())
}

// Mod returns e mod other, treating both as public integers. This is only
// ever called on public values (see C4's type-qualifier dispatch).
func (e Element) Mod(other Element) Element {
	m := new(big.Int).Mod(e.val, other.val)
	return Element{prime: e.prime, val: m}
}

// Equal compares normal-form representatives.
func (e Element) Equal(other Element) bool {
	return e.prime == other.prime && e.val.Cmp(other.val) == 0
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool { return e.val.Sign() == 0 }

// Bit returns the i-th bit (0-indexed, LSB first) of the normal-form
// representative, used by the quaternary LESS-THAN decomposition.
func (e Element) Bit(i int) bool {
	return e.val.Bit(i) == 1
}

func (e Element) mustMatch(other Element) {
	if e.prime != other.prime {
		panic("algebra: mismatched prime widths")
	}
}

// ToBytes serializes the normal-form representative into a fixed-width,
// big-endian byte slice sized to the prime's byte length.
func (e Element) ToBytes() []byte {
	byteLen := (e.prime.Bits() + 7) / 8
	out := make([]byte, byteLen)
	e.val.FillBytes(out)
	return out
}

// FromBytes parses a big-endian byte slice, as produced by ToBytes, back
// into an Element. Round-trips: FromBytes(ToBytes(e)) == e.
func FromBytes(sp SafePrime, b []byte) Element {
	v := new(big.Int).SetBytes(b)
	return Element{prime: sp, val: v}
}

// GobEncode and GobDecode let Element cross the gob boundary the protocol
// messages carrying it (mult.Message, open.Message, randomshare.Message)
// are encoded over: gob only sees a struct's exported fields by default,
// and both of Element's fields are unexported, so without these the prime
// width and value would silently decode as zero.
func (e Element) GobEncode() ([]byte, error) {
	out := make([]byte, 1+((e.prime.Bits()+7)/8))
	out[0] = byte(e.prime)
	e.val.FillBytes(out[1:])
	return out, nil
}

func (e *Element) GobDecode(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("algebra: empty Element gob encoding")
	}
	*e = FromBytes(SafePrime(data[0]), data[1:])
	return nil
}

// PutUint64 writes v as big-endian into the last 8 bytes of dst, zeroing
// the bytes before them; a dst shorter than 8 bytes receives only v's low
// len(dst) bytes. It exists to mirror the to_bytes/try_from_u8_slice
// round-trip invariant for small test fixtures.
func PutUint64(dst []byte, v uint64) {
	for i := range dst {
		dst[i] = 0
	}
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	if len(dst) < 8 {
		copy(dst, tmp[8-len(dst):])
		return
	}
	copy(dst[len(dst)-8:], tmp[:])
}
