// Package program holds the typed intermediate representation a compiled
// computation is lowered to before execution: typed values, addresses into
// runtime memory, a primitive op graph (MIR), and the per-step execution
// plan the VM walks. The value/address split mirrors
// republicprotocol-tau's core/vm/program and core/vm/asm packages, adapted
// from tau's untyped Fp values to the typed public/secret/boolean model
// this system's programs are written against.
package program

import (
	"fmt"
	"math/big"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
)

// Kind distinguishes the representations a TypedValue can carry.
type Kind uint8

const (
	// KindPublicInteger is a cleartext integer, known to every party.
	KindPublicInteger Kind = iota
	// KindSecretInteger is a Shamir share of an integer mod a SafePrime.
	KindSecretInteger
	// KindSecretBoolean is a Shamir share in the boolean ring view.
	KindSecretBoolean
	// KindPublicBoolean is a cleartext boolean.
	KindPublicBoolean
)

func (k Kind) String() string {
	switch k {
	case KindPublicInteger:
		return "public-integer"
	case KindSecretInteger:
		return "secret-integer"
	case KindSecretBoolean:
		return "secret-boolean"
	case KindPublicBoolean:
		return "public-boolean"
	default:
		return "unknown"
	}
}

// TypedValue is one value flowing through a program: either a public
// scalar, a secret share in field form, a secret share in the CRT ring
// view, or a public boolean. Operations dispatch on Kind the way
// tau's asm.instAdd switches on the concrete Value type, but here the
// dispatch table is driven by the typed op graph built in mir.go rather
// than an interface method per type, since the type set is closed and
// small and the lowering rules in mir.go already encode every combination
// an operation needs to handle.
type TypedValue struct {
	Kind    Kind
	Public  *big.Int
	Share   algebra.Element
	Ring    algebra.RingElement
	Boolean bool
}

// NewPublicInteger builds a public integer TypedValue.
func NewPublicInteger(v *big.Int) TypedValue {
	return TypedValue{Kind: KindPublicInteger, Public: v}
}

// NewSecretInteger builds a secret integer TypedValue from a field share.
func NewSecretInteger(share algebra.Element) TypedValue {
	return TypedValue{Kind: KindSecretInteger, Share: share}
}

// NewSecretBoolean builds a secret boolean TypedValue from a ring share.
func NewSecretBoolean(ring algebra.RingElement) TypedValue {
	return TypedValue{Kind: KindSecretBoolean, Ring: ring}
}

// NewPublicBoolean builds a public boolean TypedValue.
func NewPublicBoolean(b bool) TypedValue {
	return TypedValue{Kind: KindPublicBoolean, Boolean: b}
}

// IsSecret reports whether this value requires a share to be meaningful.
func (v TypedValue) IsSecret() bool {
	return v.Kind == KindSecretInteger || v.Kind == KindSecretBoolean
}

func (v TypedValue) String() string {
	switch v.Kind {
	case KindPublicInteger:
		return fmt.Sprintf("public(%s)", v.Public.String())
	case KindSecretInteger:
		return "secret-integer(share)"
	case KindSecretBoolean:
		return "secret-boolean(share)"
	case KindPublicBoolean:
		return fmt.Sprintf("public-bool(%v)", v.Boolean)
	default:
		return "invalid"
	}
}
