package exec

import (
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/program"
)

// Memory is the runtime memory of one executing computation: a flat slot
// array addressed by program.Addr, plus the subset of slots flagged as
// program outputs. It plays the role tau's asm.Addr-backed []Value slice
// plays, but owns the slice itself (rather than an Addr pointing into a
// shared one) since each computation instance gets its own isolated
// memory per SPEC_FULL.md's execution model.
type Memory struct {
	slots   []program.TypedValue
	outputs map[int]string // slot index -> output variable name
}

// NewMemory allocates memory for a plan, pre-seeded with the computation's
// declared inputs.
func NewMemory(size int, inputs map[int]program.TypedValue) *Memory {
	m := &Memory{
		slots:   make([]program.TypedValue, size),
		outputs: map[int]string{},
	}
	for idx, v := range inputs {
		m.slots[idx] = v
	}
	return m
}

// Load reads the value at addr.
func (m *Memory) Load(addr program.Addr) (program.TypedValue, error) {
	if addr.Index < 0 || addr.Index >= len(m.slots) {
		return program.TypedValue{}, fmt.Errorf("address %s out of range (size %d)", addr, len(m.slots))
	}
	return m.slots[addr.Index], nil
}

// Store writes value at addr.
func (m *Memory) Store(addr program.Addr, value program.TypedValue) error {
	if addr.Index < 0 || addr.Index >= len(m.slots) {
		return fmt.Errorf("address %s out of range (size %d)", addr, len(m.slots))
	}
	m.slots[addr.Index] = value
	return nil
}

// MarkOutput flags a slot as a named program output, per the output-memory
// scheme: only flagged slots are revealed/returned to the caller once
// execution finishes, everything else stays internal working state.
func (m *Memory) MarkOutput(addr program.Addr, name string) {
	m.outputs[addr.Index] = name
}

// Outputs returns every flagged output slot's current value by name.
func (m *Memory) Outputs() (map[string]program.TypedValue, error) {
	result := make(map[string]program.TypedValue, len(m.outputs))
	for idx, name := range m.outputs {
		if idx >= len(m.slots) {
			return nil, fmt.Errorf("output %q references out-of-range address %d", name, idx)
		}
		result[name] = m.slots[idx]
	}
	return result, nil
}
