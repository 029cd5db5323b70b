package exec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/program"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/mult"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
)

// stubPreprocessing satisfies Preprocessing without ever being called: the
// plan this test drives only uses OpMul and OpAdd, neither of which draws
// on preprocessing material.
type stubPreprocessing struct{}

func (stubPreprocessing) RandomElement() (algebra.Element, error) {
	return algebra.Element{}, fmt.Errorf("unused")
}
func (stubPreprocessing) RandomNonzeroElement() (algebra.Element, error) {
	return algebra.Element{}, fmt.Errorf("unused")
}
func (stubPreprocessing) TruncationMask(uint) (algebra.Element, algebra.Element, error) {
	return algebra.Element{}, algebra.Element{}, fmt.Errorf("unused")
}
func (stubPreprocessing) Reciprocal(*big.Int) (algebra.Element, error) {
	return algebra.Element{}, fmt.Errorf("unused")
}

// buildSumOfSquaresPlan computes x0*x0 + x1*x1, where the two multiplications
// have no data dependency on each other and so belong in the same batch,
// while the addition that consumes both results necessarily lands in the
// batch after.
func buildSumOfSquaresPlan() program.ExecutionPlan {
	addr0 := program.NewAddr(0, program.KindSecretInteger)
	addr1 := program.NewAddr(1, program.KindSecretInteger)
	addr2 := program.NewAddr(2, program.KindSecretInteger)
	addr3 := program.NewAddr(3, program.KindSecretInteger)
	addr4 := program.NewAddr(4, program.KindSecretInteger)

	graph := program.Graph{
		MemorySize: 5,
		Nodes: []program.Node{
			{Op: program.OpMul, Dst: addr2, Operands: []program.Addr{addr0, addr0}},
			{Op: program.OpMul, Dst: addr3, Operands: []program.Addr{addr1, addr1}},
			{Op: program.OpAdd, Dst: addr4, Operands: []program.Addr{addr2, addr3}},
		},
	}
	return program.Plan(graph)
}

func decodeMultMessage(t *testing.T, payload []byte) mult.Message {
	t.Helper()
	var m mult.Message
	require.NoError(t, gob.NewDecoder(bytes.NewReader(payload)).Decode(&m))
	return m
}

// driveToCompletion repeatedly ticks every party's VM, routing each tick's
// outgoing messages to their recipient by decoding the mult.Message
// envelope for its RoundID (which vm.roundID derives directly from the
// step index, so it doubles as the step key every message belongs to).
// Every party is ticked before any of that round's messages are delivered,
// so a party never receives a message for a step it hasn't registered yet.
// onFirstRound, if non-nil, is called after round 0's Tick calls but
// before its messages are delivered, to inspect in-flight router state.
func driveToCompletion(t *testing.T, vms map[PartyID]*VM, onFirstRound func()) {
	t.Helper()
	for round := 0; round < 20; round++ {
		allDone := true
		type outbox struct {
			from PartyID
			msgs []RoutedMessage
		}
		var boxes []outbox
		for id, vm := range vms {
			if vm.Phase() == Completed {
				continue
			}
			allDone = false
			out, err := vm.Tick()
			require.NoError(t, err)
			boxes = append(boxes, outbox{from: id, msgs: out})
		}
		if allDone {
			return
		}
		if round == 0 && onFirstRound != nil {
			onFirstRound()
		}
		for _, b := range boxes {
			for _, m := range b.msgs {
				require.Len(t, m.To, 1, "mult always addresses a single recipient")
				decoded := decodeMultMessage(t, m.Payload)
				to := m.To[0]
				require.NoError(t, vms[to].DeliverRoundMessage(int(decoded.RoundID), b.from, m.Payload))
			}
		}
	}
	t.Fatal("computation did not complete within the round budget")
}

func TestVMBatchesIndependentMultStepsIntoOneRound(t *testing.T) {
	prime := algebra.Safe64Bits
	parties := []shamir.PartyID{1, 2, 3}
	sharer := shamir.NewSharer(prime, 1, parties)

	x0 := algebra.FromUint64(prime, 6)
	x1 := algebra.FromUint64(prime, 7)
	x0Shares := sharer.Split(x0)
	x1Shares := sharer.Split(x1)

	plan := buildSumOfSquaresPlan()
	require.Len(t, plan.Batches, 2, "the two independent multiplications should share a batch")
	require.ElementsMatch(t, []int{0, 1}, plan.Batches[0])
	require.Equal(t, []int{2}, plan.Batches[1])

	vms := make(map[PartyID]*VM, len(parties))
	for i, id := range parties {
		memory := NewMemory(plan.MemorySize, map[int]program.TypedValue{
			0: program.NewSecretInteger(x0Shares[i].Value),
			1: program.NewSecretInteger(x1Shares[i].Value),
		})
		memory.MarkOutput(program.NewAddr(4, program.KindSecretInteger), "sum_of_squares")

		reg := prometheus.NewRegistry()
		vm := New("computation-1", id, sharer, prime, plan, memory, stubPreprocessing{}, NewMetrics(reg))
		vm.Bootstrap()
		vms[id] = vm
	}

	// The first round's Tick call on every party should register both mult
	// instances together, confirming they share one batch instead of being
	// driven one Tick apart.
	checkedBatching := false
	driveToCompletion(t, vms, func() {
		checkedBatching = true
		_, step0Running := vms[parties[0]].router.Get(StepKey{Computation: "computation-1", Step: 0})
		_, step1Running := vms[parties[0]].router.Get(StepKey{Computation: "computation-1", Step: 1})
		require.True(t, step0Running)
		require.True(t, step1Running)
	})
	require.True(t, checkedBatching)

	for id, vm := range vms {
		require.Equal(t, Completed, vm.Phase(), "party %d", id)
	}

	shares := make([]shamir.Share, 0, len(parties))
	for id, vm := range vms {
		outputs, err := vm.memory.Outputs()
		require.NoError(t, err)
		shares = append(shares, shamir.Share{Party: id, Value: outputs["sum_of_squares"].Share})
	}
	recovered, err := sharer.Recover(shares)
	require.NoError(t, err)
	require.True(t, algebra.FromUint64(prime, 36+49).Equal(recovered))
}
