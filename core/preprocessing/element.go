// Package preprocessing manages the offline material (random elements,
// blinding masks, truncation masks, compare digits, ecdsa auxiliary
// info) interactive protocols consume during execution, and the
// scheduler that keeps the pool topped up ahead of demand. The offset
// watermark model and replenishment algorithm are grounded on
// original_source/node/src/stateful/preprocessing_scheduler.rs, which
// drives exactly this replenishment loop (target/latest/committed,
// generation_threshold, target_offset_jump) in the system this module
// is modeled on.
package preprocessing

// ElementKind names one of the ten preprocessing element types the
// cluster replenishes independently, matching SPEC_FULL.md's Element
// kinds list exactly (Compare, DivisionIntegerSecret,
// EqualsIntegerSecret, Modulo, PublicOutputEquality, Trunc, TruncPr,
// RandomInteger, RandomBoolean, EcdsaAuxInfo) rather than merging any of
// them together: each has its own offline state machine and its own
// batch storage, so collapsing two kinds into one would make it
// impossible for one kind's scheduler to fall behind independently of
// the other's, contradicting the per-kind backoff REDESIGN note.
type ElementKind uint8

const (
	ElementCompare ElementKind = iota
	ElementDivisionIntegerSecret
	ElementEqualsIntegerSecret
	ElementModulo
	ElementPublicOutputEquality
	ElementTrunc
	ElementTruncPr
	ElementRandomInteger
	ElementRandomBoolean
	ElementEcdsaAuxInfo
)

func (k ElementKind) String() string {
	switch k {
	case ElementCompare:
		return "compare"
	case ElementDivisionIntegerSecret:
		return "division-integer-secret"
	case ElementEqualsIntegerSecret:
		return "equals-integer-secret"
	case ElementModulo:
		return "modulo"
	case ElementPublicOutputEquality:
		return "public-output-equality"
	case ElementTrunc:
		return "trunc"
	case ElementTruncPr:
		return "trunc-pr"
	case ElementRandomInteger:
		return "random-integer"
	case ElementRandomBoolean:
		return "random-boolean"
	case ElementEcdsaAuxInfo:
		return "ecdsa-aux-info"
	default:
		return "unknown"
	}
}

// Kinds lists every ElementKind the scheduler tracks independently, the
// Go equivalent of the Rust enum's strum::IntoEnumIterator used to spawn
// one scheduler goroutine per element.
func Kinds() []ElementKind {
	return []ElementKind{
		ElementCompare,
		ElementDivisionIntegerSecret,
		ElementEqualsIntegerSecret,
		ElementModulo,
		ElementPublicOutputEquality,
		ElementTrunc,
		ElementTruncPr,
		ElementRandomInteger,
		ElementRandomBoolean,
		ElementEcdsaAuxInfo,
	}
}
