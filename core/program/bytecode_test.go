package program

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleGraph() Graph {
	return Graph{
		MemorySize: 3,
		Nodes: []Node{
			{Op: OpAdd, Dst: Addr{Index: 2, Kind: KindPublicInteger}, Operands: []Addr{{Index: 0}, {Index: 1}}},
		},
	}
}

func TestCompileDecompileRoundTrip(t *testing.T) {
	g := sampleGraph()
	b := Compile(g)
	got, err := Decompile(b)
	require.NoError(t, err)
	require.Equal(t, g, got)
}

func TestDecompileRejectsOutOfBoundsAddress(t *testing.T) {
	b := Bytecode{
		MemorySize: 1,
		Nodes:      []Node{{Op: OpAdd, Dst: Addr{Index: 5}}},
	}
	_, err := Decompile(b)
	require.Error(t, err)
}

func TestYAMLFileRoundTrip(t *testing.T) {
	g := sampleGraph()
	path := filepath.Join(t.TempDir(), "program.yaml")

	require.NoError(t, WriteYAMLFile(path, Compile(g)))
	got, err := ReadYAMLFile(path)
	require.NoError(t, err)
	require.Equal(t, g, got)
}
