package program

import "fmt"

// Addr names a slot in a program's runtime memory. It carries the Kind the
// slot was typed with at compile time so the executor can validate a
// stored value's kind matches without threading type information through
// every instruction, the same role tau's asm.Addr plays for its single
// untyped Value slice, generalized to the typed memory model here.
type Addr struct {
	Index int
	Kind  Kind
}

// NewAddr builds an Addr at a given memory slot for a given Kind.
func NewAddr(index int, kind Kind) Addr {
	return Addr{Index: index, Kind: kind}
}

// Offset returns the Addr `n` slots further into memory, preserving Kind.
// Used for lowering vector/Zip/Map operations into per-element scalar ops
// addressing contiguous memory the way tau's AddrIter does.
func (a Addr) Offset(n int) Addr {
	return Addr{Index: a.Index + n, Kind: a.Kind}
}

func (a Addr) String() string {
	return fmt.Sprintf("@%d:%s", a.Index, a.Kind)
}
