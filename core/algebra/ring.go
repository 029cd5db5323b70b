package algebra

import "math/big"

// RingElement is a value in ℤ/(2q)ℤ represented via its CRT components
// modulo the Sophie-Germain sibling q and modulo 2. This pairing is what
// lets an arithmetic share (mod q) and a boolean share (mod 2) be combined
// into a single additively-shared ring element without a protocol-level
// conversion step: the two residues are carried side by side and only
// recombined via CRT when a canonical ℤ/2qℤ value is needed.
type RingElement struct {
	prime SafePrime
	modQ  *big.Int // residue modulo q = SiblingQ.
	mod2  uint8    // residue modulo 2, either 0 or 1.
}

// NewRingElement builds a RingElement directly from its two CRT residues.
func NewRingElement(sp SafePrime, modQ *big.Int, mod2 uint8) RingElement {
	q := SpecFor(sp).SiblingQ
	return RingElement{prime: sp, modQ: new(big.Int).Mod(modQ, q), mod2: mod2 & 1}
}

// FromCanonical decomposes a canonical ℤ/2qℤ value into its CRT residues.
func FromCanonical(sp SafePrime, x *big.Int) RingElement {
	q := SpecFor(sp).SiblingQ
	modQ := new(big.Int).Mod(x, q)
	mod2 := uint8(new(big.Int).Mod(x, big.NewInt(2)).Int64())
	return RingElement{prime: sp, modQ: modQ, mod2: mod2}
}

// ModQ returns the residue modulo q.
func (r RingElement) ModQ() *big.Int { return new(big.Int).Set(r.modQ) }

// Mod2 returns the residue modulo 2, i.e. the boolean value this ring
// element carries.
func (r RingElement) Mod2() uint8 { return r.mod2 }

// Add combines two ring elements component-wise: q-component mod q,
// 2-component mod 2 (i.e. XOR).
func (r RingElement) Add(other RingElement) RingElement {
	r.mustMatch(other)
	q := SpecFor(r.prime).SiblingQ
	modQ := new(big.Int).Mod(new(big.Int).Add(r.modQ, other.modQ), q)
	return RingElement{prime: r.prime, modQ: modQ, mod2: r.mod2 ^ other.mod2}
}

// Canonical reconstructs the single ℤ/2qℤ value from the two CRT residues
// via the explicit CRT formula for moduli (q,2): find the unique x with
// x ≡ modQ (mod q) and x ≡ mod2 (mod 2).
func (r RingElement) Canonical() *big.Int {
	q := SpecFor(r.prime).SiblingQ
	// q is odd (it's the Sophie-Germain sibling of an odd safe prime), so 2
	// and q are coprime and CRT applies directly: if modQ has the wrong
	// parity, add q once to flip it without changing the value mod q.
	x := new(big.Int).Set(r.modQ)
	if uint8(new(big.Int).Mod(x, big.NewInt(2)).Int64()) != r.mod2 {
		x.Add(x, q)
	}
	return x
}

func (r RingElement) mustMatch(other RingElement) {
	if r.prime != other.prime {
		panic("algebra: mismatched prime widths in ring element")
	}
}
