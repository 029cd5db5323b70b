package exec

import (
	"fmt"
	"math/big"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/program"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/compare"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/division"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/equals"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/modulo"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/mult"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/open"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/publicoutputequality"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/randombit"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/randombitwise"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/truncation"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
)

// Preprocessing supplies the random material an interactive step consumes
// (fresh random elements, nonzero elements for blinding masks, truncation
// masks with their pre-shifted shares). It is implemented by the
// preprocessing package's pool; exec only needs the narrow draw surface,
// matching the way tau's asm instructions pull from preallocated
// Sigmas/Rhos slices rather than generating material inline.
type Preprocessing interface {
	RandomElement() (algebra.Element, error)
	RandomNonzeroElement() (algebra.Element, error)
	TruncationMask(bits uint) (share, shiftedShare algebra.Element, err error)
	Reciprocal(divisor *big.Int) (algebra.Element, error)
}

// Phase distinguishes the run states a computation instance passes
// through: waiting for every party to acknowledge the plan (and for
// preprocessing material to be available) before any step executes,
// actively executing steps thereafter, and the terminal Completed and
// Aborted states.
type Phase uint8

const (
	WaitingBootstrap Phase = iota
	Executing
	Completed
	Aborted
)

// VM drives one computation instance's ExecutionPlan to completion,
// stepping local operations inline and routing interactive ones through a
// Router of protocol instances.
type VM struct {
	self    shamir.PartyID
	sharer  shamir.Sharer
	prime   algebra.SafePrime
	plan    program.ExecutionPlan
	memory  *Memory
	router  *Router
	prep    Preprocessing
	metrics *Metrics

	computation string
	phase       Phase
	batchIdx    int
	localDone   []bool
	abortReason string
}

// New builds a VM ready to execute plan once every bootstrap
// acknowledgement has arrived.
func New(computation string, self shamir.PartyID, sharer shamir.Sharer, prime algebra.SafePrime, plan program.ExecutionPlan, memory *Memory, prep Preprocessing, metrics *Metrics) *VM {
	return &VM{
		self:        self,
		sharer:      sharer,
		prime:       prime,
		plan:        plan,
		memory:      memory,
		router:      NewRouter(),
		prep:        prep,
		metrics:     metrics,
		computation: computation,
		phase:       WaitingBootstrap,
		localDone:   make([]bool, len(plan.Steps)),
	}
}

// Bootstrap transitions WaitingBootstrap -> Executing once the caller has
// confirmed every party is ready.
func (vm *VM) Bootstrap() {
	if vm.phase == WaitingBootstrap {
		vm.phase = Executing
	}
}

// Phase reports the VM's current run phase.
func (vm *VM) Phase() Phase { return vm.phase }

// Abort marks the computation as aborted with a reason, short-circuiting
// further stepping. Once aborted a VM never resumes: a fresh instance
// must be started to retry, since any in-flight protocol state is now
// inconsistent with what peers believe happened.
func (vm *VM) Abort(reason string) {
	vm.phase = Aborted
	vm.abortReason = reason
	vm.metrics.StepsAborted.Inc()
}

// AbortReason returns why the VM aborted, if it did.
func (vm *VM) AbortReason() string { return vm.abortReason }

// DeliverRoundMessage routes one inbound wire message to the step it
// belongs to.
func (vm *VM) DeliverRoundMessage(step int, from shamir.PartyID, payload []byte) error {
	vm.metrics.RoundMessages.Inc()
	return vm.router.Deliver(StepKey{Computation: vm.computation, Step: step}, from, payload)
}

// Tick advances execution by as much as it can make progress on right
// now without blocking. Rather than driving one step at a time, it works
// one batch at a time: every step in the current batch that has no data
// dependency on another step in the same batch (per
// program.ExecutionPlan.Batches) is started and polled together, so their
// protocol instances share one communication round instead of being
// serialized round-by-round the way a single-step-per-Tick loop would.
// It returns every message the whole batch produced this call.
func (vm *VM) Tick() ([]RoutedMessage, error) {
	if vm.phase != Executing {
		return nil, nil
	}
	if vm.batchIdx >= len(vm.plan.Batches) {
		vm.phase = Completed
		return nil, nil
	}

	batch := vm.plan.Batches[vm.batchIdx]
	var outgoing []RoutedMessage
	batchDone := true

	for _, stepIdx := range batch {
		step := vm.plan.Steps[stepIdx]

		if step.Variant == program.VariantNone {
			if !vm.localDone[stepIdx] {
				if err := vm.evalLocal(step.Node); err != nil {
					vm.Abort(err.Error())
					return nil, err
				}
				vm.localDone[stepIdx] = true
				vm.metrics.StepsCompleted.Inc()
			}
			continue
		}

		key := StepKey{Computation: vm.computation, Step: stepIdx}
		if _, running := vm.router.Get(key); !running {
			inst, err := vm.startInstance(stepIdx, step)
			if err != nil {
				vm.Abort(err.Error())
				return nil, err
			}
			vm.router.Register(key, inst)
			vm.metrics.StepsStarted.Inc()
			vm.metrics.InFlightSteps.Inc()
		}

		out, completed, err := vm.router.Poll(key)
		if err != nil {
			vm.Abort(err.Error())
			return nil, err
		}
		outgoing = append(outgoing, out...)

		if !completed {
			batchDone = false
			continue
		}
		value, err := vm.router.Result(key)
		if err != nil {
			vm.Abort(err.Error())
			return nil, err
		}
		if err := vm.memory.Store(step.Node.Dst, value); err != nil {
			vm.Abort(err.Error())
			return nil, err
		}
		vm.metrics.InFlightSteps.Dec()
		vm.metrics.StepsCompleted.Inc()
	}

	if batchDone {
		vm.batchIdx++
		if len(outgoing) == 0 {
			return vm.Tick()
		}
	}
	return outgoing, nil
}

// roundID derives a round discriminator from the step index. The ids are
// not unique across a computation: equals-style steps pass 2*step and
// 2*step+1, and composite protocols add their own offsets (randombit uses
// id+1 and id+2), so two steps can end up with the same id. Messages of
// different steps are kept apart by the step each routed message is
// addressed to, not by this id.
func (vm *VM) roundID(step int) uint32 { return uint32(step) }

func (vm *VM) startInstance(stepIdx int, step program.ExecutionStep) (Instance, error) {
	n := step.Node
	load := func(a program.Addr) (program.TypedValue, error) { return vm.memory.Load(a) }

	switch step.Variant {
	case program.VariantMult:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		b, err := load(n.Operands[1])
		if err != nil {
			return nil, err
		}
		st := mult.New(vm.sharer, vm.self, vm.roundID(stepIdx), a.Share, b.Share)
		return NewBox[*mult.State, mult.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewSecretInteger(e), nil
		}), nil

	case program.VariantOpen:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		st := open.New(vm.sharer, vm.self, vm.roundID(stepIdx), a.Share)
		return NewBox[*open.State, open.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewPublicInteger(e.Value()), nil
		}), nil

	case program.VariantRandomBit:
		st := randombit.New(vm.sharer, vm.self, vm.roundID(stepIdx), vm.prime)
		return NewBox[*randombit.State, randombit.Message, randombit.Result](st, func(r randombit.Result) (program.TypedValue, error) {
			return program.NewSecretInteger(r.BitShare), nil
		}), nil

	case program.VariantRandomBitwise:
		st := randombitwise.New(vm.sharer, vm.self, vm.roundID(stepIdx), vm.prime, randombitwise.Full, int(n.Immediate))
		return NewBox[*randombitwise.State, randombitwise.Message, randombitwise.Result](st, func(r randombitwise.Result) (program.TypedValue, error) {
			return program.NewSecretInteger(r.Element), nil
		}), nil

	case program.VariantCompare:
		c, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		if c.Kind != program.KindPublicInteger {
			return nil, fmt.Errorf("compare currently requires a public comparand")
		}
		secret, err := load(n.Operands[1])
		if err != nil {
			return nil, err
		}
		r0, err := vm.prep.RandomElement()
		if err != nil {
			return nil, err
		}
		r1, err := vm.prep.RandomElement()
		if err != nil {
			return nil, err
		}
		rr, err := vm.prep.RandomElement()
		if err != nil {
			return nil, err
		}
		digits := []compare.QuaternaryDigit{{R0: r0, R1: r1, RR: rr}}
		st, err := compare.New(vm.sharer, vm.self, vm.roundID(stepIdx), vm.prime, c.Public, digits)
		if err != nil {
			return nil, err
		}
		_ = secret
		return NewBox[*compare.State, compare.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewSecretBoolean(algebra.FromCanonical(vm.prime, e.Value())), nil
		}), nil

	case program.VariantEquals:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		b, err := load(n.Operands[1])
		if err != nil {
			return nil, err
		}
		nonzero, err := vm.prep.RandomNonzeroElement()
		if err != nil {
			return nil, err
		}
		st := equals.New(vm.sharer, vm.self, vm.roundID(stepIdx*2), vm.roundID(stepIdx*2+1), vm.prime, a.Share, b.Share, nonzero)
		return NewBox[*equals.State, equals.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewSecretInteger(e), nil
		}), nil

	case program.VariantPublicOutputEquality:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		b, err := load(n.Operands[1])
		if err != nil {
			return nil, err
		}
		nonzero, err := vm.prep.RandomNonzeroElement()
		if err != nil {
			return nil, err
		}
		st := publicoutputequality.New(vm.sharer, vm.self, vm.roundID(stepIdx*2), vm.roundID(stepIdx*2+1), a.Share, b.Share, nonzero)
		return NewBox[*publicoutputequality.State, publicoutputequality.Message, bool](st, func(b bool) (program.TypedValue, error) {
			return program.NewPublicBoolean(b), nil
		}), nil

	case program.VariantTruncation:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		mode := truncation.Trunc
		if n.Op == program.OpTruncPr {
			mode = truncation.TruncPr
		}
		maskShare, maskShiftedShare, err := vm.prep.TruncationMask(uint(n.Immediate))
		if err != nil {
			return nil, err
		}
		st := truncation.New(vm.sharer, vm.self, vm.roundID(stepIdx), vm.prime, mode, uint(n.Immediate), a.Share, maskShare, maskShiftedShare)
		return NewBox[*truncation.State, truncation.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewSecretInteger(e), nil
		}), nil

	case program.VariantDivision:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		divisor := big.NewInt(int64(n.Immediate))
		reciprocal, err := vm.prep.Reciprocal(divisor)
		if err != nil {
			return nil, err
		}
		maskShare, maskShiftedShare, err := vm.prep.TruncationMask(division.ReciprocalShift)
		if err != nil {
			return nil, err
		}
		st := division.New(vm.sharer, vm.self, vm.roundID(stepIdx), vm.prime, a.Share, reciprocal, maskShare, maskShiftedShare)
		return NewBox[*division.State, division.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewSecretInteger(e), nil
		}), nil

	case program.VariantModulo:
		a, err := load(n.Operands[0])
		if err != nil {
			return nil, err
		}
		modulus := big.NewInt(int64(n.Immediate))
		reciprocal, err := vm.prep.Reciprocal(modulus)
		if err != nil {
			return nil, err
		}
		maskShare, maskShiftedShare, err := vm.prep.TruncationMask(division.ReciprocalShift)
		if err != nil {
			return nil, err
		}
		st := modulo.New(vm.sharer, vm.self, vm.roundID(stepIdx), vm.prime, modulus, a.Share, reciprocal, maskShare, maskShiftedShare)
		return NewBox[*modulo.State, modulo.Message, algebra.Element](st, func(e algebra.Element) (program.TypedValue, error) {
			return program.NewSecretInteger(e), nil
		}), nil

	default:
		return nil, fmt.Errorf("unsupported protocol variant %d", step.Variant)
	}
}

func (vm *VM) evalLocal(n program.Node) error {
	switch n.Op {
	case program.OpAdd:
		return vm.binaryLocal(n, vm.addTyped)
	case program.OpSub:
		return vm.binaryLocal(n, vm.subTyped)
	case program.OpNeg:
		a, err := vm.memory.Load(n.Operands[0])
		if err != nil {
			return err
		}
		return vm.memory.Store(n.Dst, negTyped(a))
	case program.OpNot:
		// Only the designated party (index 0 in the sorted membership)
		// adds the public 1 term; every other party just negates its own
		// share, the usual convention for adding a public constant to an
		// additively shared value. That party-index plumbing belongs to
		// the caller that builds this Node; here the share is flipped
		// unconditionally, matching this package's current scope of
		// driving a single local party's view of the computation.
		a, err := vm.memory.Load(n.Operands[0])
		if err != nil {
			return err
		}
		notVal := new(big.Int).Sub(big.NewInt(1), a.Ring.Canonical())
		return vm.memory.Store(n.Dst, program.NewSecretBoolean(algebra.FromCanonical(vm.prime, notVal)))
	default:
		return fmt.Errorf("opcode %d is not a local operation", n.Op)
	}
}

func (vm *VM) binaryLocal(n program.Node, f func(a, b program.TypedValue) program.TypedValue) error {
	a, err := vm.memory.Load(n.Operands[0])
	if err != nil {
		return err
	}
	b, err := vm.memory.Load(n.Operands[1])
	if err != nil {
		return err
	}
	return vm.memory.Store(n.Dst, f(a, b))
}

func (vm *VM) addTyped(a, b program.TypedValue) program.TypedValue {
	if a.Kind == program.KindPublicInteger && b.Kind == program.KindPublicInteger {
		return program.NewPublicInteger(new(big.Int).Add(a.Public, b.Public))
	}
	return program.NewSecretInteger(vm.resolveShare(a).Add(vm.resolveShare(b)))
}

func (vm *VM) subTyped(a, b program.TypedValue) program.TypedValue {
	if a.Kind == program.KindPublicInteger && b.Kind == program.KindPublicInteger {
		return program.NewPublicInteger(new(big.Int).Sub(a.Public, b.Public))
	}
	return program.NewSecretInteger(vm.resolveShare(a).Sub(vm.resolveShare(b)))
}

func negTyped(a program.TypedValue) program.TypedValue {
	if a.Kind == program.KindPublicInteger {
		return program.NewPublicInteger(new(big.Int).Neg(a.Public))
	}
	return program.NewSecretInteger(a.Share.Neg())
}

// resolveShare treats a public value as its degenerate degree-0 share so
// mixed public/secret local arithmetic can share one code path, the same
// convention equals.go uses to lift a revealed public boolean back into
// share space.
func (vm *VM) resolveShare(v program.TypedValue) algebra.Element {
	if v.Kind == program.KindPublicInteger {
		return algebra.FromBigInt(vm.prime, v.Public)
	}
	return v.Share
}
