package program

// DefaultMaxBatchSize bounds how many interactive protocol instances one
// execution batch starts concurrently, standing in for
// execution_engine.max_protocol_messages_count: each interactive step can
// put O(parties) messages in flight per round, so capping the instance
// count per batch is this module's direct handle on that limit. Plan
// uses this default; PlanWithBatchSize takes the configured value.
const DefaultMaxBatchSize = 32

// ProtocolVariant names which concrete protocol implementation an
// ExecutionStep should drive, since a single OpCode can map to more than
// one protocol depending on the operand types it was compiled against
// (for instance OpMul with a secret destination drives the mult package,
// while OpMul with a public destination is evaluated locally with no
// protocol at all). The plan builder resolves this
// once, at plan time, so the executor never re-derives it per step.
type ProtocolVariant uint8

const (
	VariantNone ProtocolVariant = iota
	VariantMult
	VariantOpen
	VariantRandomBit
	VariantRandomBitwise
	VariantCompare
	VariantEquals
	VariantPublicOutputEquality
	VariantTruncation
	VariantDivision
	VariantModulo
)

// ExecutionStep is one Node annotated with the protocol variant (if any)
// the executor should instantiate for it. Local ops (Add/Sub/Neg/Not) get
// VariantNone and are evaluated directly with no protocol round, the same
// split tau's asm package draws between instAdd (Ready() immediately) and
// instMul/instOpen (NotReady() until a driven sub-protocol completes).
type ExecutionStep struct {
	Node    Node
	Variant ProtocolVariant
}

// ExecutionPlan is the ordered list of steps the VM walks, one Graph
// compiled down to concrete protocol selections, partitioned into Batches
// of steps that can be driven in the same communication round.
type ExecutionPlan struct {
	Steps      []ExecutionStep
	Batches    [][]int
	MemorySize int
}

// Plan resolves a Graph into an ExecutionPlan by selecting a protocol
// variant for each interactive opcode based on its destination Kind, then
// grouping independent steps into DefaultMaxBatchSize-capped batches so
// the executor can drive more than one protocol per communication round
// instead of serializing every step regardless of whether it actually
// depends on the previous one.
func Plan(g Graph) ExecutionPlan {
	return PlanWithBatchSize(g, DefaultMaxBatchSize)
}

// PlanWithBatchSize is Plan parametrized over the batch cap, for callers
// wiring config.Config.ExecutionEngine.MaxProtocolMessagesCount through
// instead of the default.
func PlanWithBatchSize(g Graph, maxBatchSize int) ExecutionPlan {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	steps := make([]ExecutionStep, len(g.Nodes))
	for i, n := range g.Nodes {
		steps[i] = ExecutionStep{Node: n, Variant: variantFor(n)}
	}
	return ExecutionPlan{Steps: steps, Batches: computeBatches(steps, maxBatchSize), MemorySize: g.MemorySize}
}

// computeBatches greedily partitions steps, in their original program
// order, into rounds where no step reads an address a step earlier in the
// same round produced: those steps have no data dependency on one
// another and can be started together in a single shared communication
// round rather than one after another. A round closes either when the
// next step depends on something the current round produced, or once it
// already holds maxBatchSize interactive (non-local) steps, mirroring the
// scheduler's own "generate up to a capped batch, then commit" approach
// to bounding how much work is in flight at once (core/preprocessing).
func computeBatches(steps []ExecutionStep, maxBatchSize int) [][]int {
	var batches [][]int
	var current []int
	producedThisBatch := map[int]bool{}
	interactiveInBatch := 0

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
		}
		current = nil
		producedThisBatch = map[int]bool{}
		interactiveInBatch = 0
	}

	for i, step := range steps {
		dependsOnBatch := false
		for _, op := range step.Node.Operands {
			if producedThisBatch[op.Index] {
				dependsOnBatch = true
				break
			}
		}
		interactive := step.Variant != VariantNone
		if dependsOnBatch || (interactive && interactiveInBatch >= maxBatchSize) {
			flush()
		}
		current = append(current, i)
		producedThisBatch[step.Node.Dst.Index] = true
		if interactive {
			interactiveInBatch++
		}
	}
	flush()
	return batches
}

func variantFor(n Node) ProtocolVariant {
	switch n.Op {
	case OpMul:
		if n.Dst.Kind == KindSecretInteger || n.Dst.Kind == KindSecretBoolean {
			return VariantMult
		}
		return VariantNone
	case OpReveal, OpOutputShare:
		return VariantOpen
	case OpRandomBit:
		return VariantRandomBit
	case OpRandomBitwise:
		return VariantRandomBitwise
	case OpLessThan:
		return VariantCompare
	case OpEquals:
		return VariantEquals
	case OpPublicOutputEquality:
		return VariantPublicOutputEquality
	case OpTrunc, OpTruncPr:
		return VariantTruncation
	case OpDivision:
		return VariantDivision
	case OpModulo:
		return VariantModulo
	default:
		return VariantNone
	}
}
