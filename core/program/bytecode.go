package program

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bytecode is the serialized form of a Graph, the unit stored and shipped
// to a cluster for execution — analogous to tau's program.Code, which
// serializes a flat []Inst. Programs are represented as plain Go structs
// with JSON/YAML tags rather than a custom binary encoding, matching the
// approach the node's storage layer (SPEC_FULL.md §6) takes for other
// persisted records.
type Bytecode struct {
	Nodes      []Node `json:"nodes" yaml:"nodes"`
	MemorySize int    `json:"memory_size" yaml:"memory_size"`
}

// Compile serializes a Graph into Bytecode.
func Compile(g Graph) Bytecode {
	return Bytecode{Nodes: g.Nodes, MemorySize: g.MemorySize}
}

// Decompile reconstructs a Graph from Bytecode, failing if any Node
// addresses memory beyond MemorySize, the same bounds tau's asm.Addr
// enforces at access time rather than load time here, since catching a
// malformed program before execution starts is cheaper than failing mid
// round.
func Decompile(b Bytecode) (Graph, error) {
	for i, n := range b.Nodes {
		if n.Dst.Index >= b.MemorySize {
			return Graph{}, fmt.Errorf("node %d: destination address %d exceeds memory size %d", i, n.Dst.Index, b.MemorySize)
		}
		for _, op := range n.Operands {
			if op.Index >= b.MemorySize {
				return Graph{}, fmt.Errorf("node %d: operand address %d exceeds memory size %d", i, op.Index, b.MemorySize)
			}
		}
	}
	return Graph{Nodes: b.Nodes, MemorySize: b.MemorySize}, nil
}

// WriteYAMLFile writes b to path in YAML, the format operator-authored
// program files use (hand-editable, unlike the gob wire encoding
// core/exec uses for in-flight protocol messages).
func WriteYAMLFile(path string, b Bytecode) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling bytecode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadYAMLFile loads a Bytecode previously written by WriteYAMLFile and
// decompiles it, validating memory bounds the same way Decompile does
// for any other Bytecode source.
func ReadYAMLFile(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Graph{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var b Bytecode
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Graph{}, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	return Decompile(b)
}
