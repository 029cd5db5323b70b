package program

// OpCode names a primitive operation in the typed op graph a program
// lowers to before bytecode generation. The set here is the closed
// primitive basis everything else (comparisons, boolean connectives,
// Zip/Unzip/Map/Reduce) compiles down to, mirroring the way tau's asm
// package exposes only Add/Sub/Mul/Exp/Inv/Mod/Open/GenerateRn as actual
// instructions and expresses everything else (its macro package's
// comparisons and bitwise ops) as Expand()-time rewrites into those
// primitives.
type OpCode uint8

const (
	OpAdd OpCode = iota
	OpSub
	OpMul
	OpNeg
	OpLessThan
	OpEquals
	OpPublicOutputEquality
	OpNot
	OpTrunc
	OpTruncPr
	OpDivision
	OpModulo
	OpRandomBit
	OpRandomBitwise
	OpReveal
	OpInputShare
	OpOutputShare
)

// Node is one operation in the typed op graph: an opcode, its operand
// addresses, and the destination it writes to. Nodes form a DAG in
// program order; the plan builder in plan.go walks them in sequence,
// which is sufficient here since nothing in this op set allows operand
// addresses to alias a not-yet-produced destination.
type Node struct {
	Op       OpCode
	Dst      Addr
	Operands []Addr
	// Immediate carries a public modulus/shift count for ops that need a
	// compile-time constant the addresses alone don't express (Modulo's
	// divisor, Trunc's bit count).
	Immediate uint64
}

// Graph is a lowered program: a flat sequence of Nodes plus the memory
// size they address into.
type Graph struct {
	Nodes     []Node
	MemorySize int
}

// Builder accumulates Nodes and allocates fresh memory slots, playing the
// role tau's asm.Alloc plays for its contiguous Value slices.
type Builder struct {
	nodes []Node
	next  int
}

// NewBuilder starts a fresh lowering pass.
func NewBuilder() *Builder { return &Builder{} }

// Alloc reserves a fresh Addr of the given Kind.
func (b *Builder) Alloc(kind Kind) Addr {
	a := Addr{Index: b.next, Kind: kind}
	b.next++
	return a
}

// Emit appends a primitive Node.
func (b *Builder) Emit(n Node) { b.nodes = append(b.nodes, n) }

// Build finalizes the Graph.
func (b *Builder) Build() Graph {
	return Graph{Nodes: b.nodes, MemorySize: b.next}
}

// LowerLessOrEqualThan rewrites `a <= b` as `!(b < a)`, the De Morgan
// swap-and-negate the original surface language's comparator sugar
// compiles to — there is no LESS-OR-EQUAL-THAN protocol, only LESS-THAN
// and boolean NOT.
func (b *Builder) LowerLessOrEqualThan(a, c Addr) Addr {
	lt := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpLessThan, Dst: lt, Operands: []Addr{c, a}})
	return b.LowerNot(lt)
}

// LowerGreaterThan rewrites `a > b` as `b < a`.
func (b *Builder) LowerGreaterThan(a, c Addr) Addr {
	dst := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpLessThan, Dst: dst, Operands: []Addr{c, a}})
	return dst
}

// LowerGreaterOrEqualThan rewrites `a >= b` as `!(a < b)`.
func (b *Builder) LowerGreaterOrEqualThan(a, c Addr) Addr {
	lt := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpLessThan, Dst: lt, Operands: []Addr{a, c}})
	return b.LowerNot(lt)
}

// LowerNotEquals rewrites `a != b` as `!(a == b)`.
func (b *Builder) LowerNotEquals(a, c Addr) Addr {
	eq := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpEquals, Dst: eq, Operands: []Addr{a, c}})
	return b.LowerNot(eq)
}

// LowerNot rewrites boolean negation as a local op with no interaction: in
// the ring view a boolean share's complement is `1 - share` component-wise,
// so this does not need its own protocol — it's folded into OpNot purely
// as bookkeeping for the executor rather than a real round.
func (b *Builder) LowerNot(a Addr) Addr {
	dst := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpNot, Dst: dst, Operands: []Addr{a}})
	return dst
}

// LowerBooleanOr rewrites `a | b` as `a + b - a*b`, the standard
// arithmetization of OR over a ring where AND is multiplication.
func (b *Builder) LowerBooleanOr(a, c Addr) Addr {
	sum := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpAdd, Dst: sum, Operands: []Addr{a, c}})
	prod := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpMul, Dst: prod, Operands: []Addr{a, c}})
	dst := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpSub, Dst: dst, Operands: []Addr{sum, prod}})
	return dst
}

// LowerBooleanXor rewrites `a ^ b` as `a + b - 2*a*b`.
func (b *Builder) LowerBooleanXor(a, c Addr) Addr {
	sum := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpAdd, Dst: sum, Operands: []Addr{a, c}})
	prod := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpMul, Dst: prod, Operands: []Addr{a, c}})
	doubled := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpAdd, Dst: doubled, Operands: []Addr{prod, prod}})
	dst := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpSub, Dst: dst, Operands: []Addr{sum, doubled}})
	return dst
}

// LowerBooleanAnd rewrites `a & b` as a bare multiplication.
func (b *Builder) LowerBooleanAnd(a, c Addr) Addr {
	dst := b.Alloc(KindSecretBoolean)
	b.Emit(Node{Op: OpMul, Dst: dst, Operands: []Addr{a, c}})
	return dst
}

// LowerZip expands an element-wise binary vector op into `n` scalar ops
// over contiguous addresses, the typed analogue of tau's AddrIter-driven
// instAdd/instSub loops.
func (b *Builder) LowerZip(op OpCode, lhs, rhs Addr, n int) Addr {
	dst := b.Alloc(lhs.Kind)
	for i := 0; i < n; i++ {
		elemDst := dst.Offset(i)
		if i > 0 {
			b.next++ // contiguous allocation for the remaining elements
		}
		b.Emit(Node{Op: op, Dst: elemDst, Operands: []Addr{lhs.Offset(i), rhs.Offset(i)}})
	}
	return dst
}

// LowerReduce folds a vector of n elements starting at src into a single
// scalar by repeated application of op, left to right.
func (b *Builder) LowerReduce(op OpCode, src Addr, n int) Addr {
	if n == 0 {
		return src
	}
	acc := src
	for i := 1; i < n; i++ {
		next := b.Alloc(src.Kind)
		b.Emit(Node{Op: op, Dst: next, Operands: []Addr{acc, src.Offset(i)}})
		acc = next
	}
	return acc
}
