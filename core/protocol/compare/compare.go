// Package compare implements the quaternary LESS-THAN protocol: the public
// comparand is decomposed into pairs of bits (c1,c0); the secret operand's
// preprocessing material supplies, per quaternary digit, a share triple
// (r0, r1, r0·r1). Per-digit (equal, less) comparators are computed via
// closed-form arithmetic (no multiplication needed for the leaves), then
// adjacent digit-pair comparators are iteratively folded together with
// MULT, halving the vector each round, until a single scalar `less` share
// remains.
package compare

import (
	"fmt"
	"math/big"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/mult"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// QuaternaryDigit is one party's preprocessed share triple for a single
// base-4 digit of the secret operand: r0 and r1 are shares of the digit's
// two bits, rr is a share of their product.
type QuaternaryDigit struct {
	R0 algebra.Element
	R1 algebra.Element
	RR algebra.Element
}

// comparator is a digit's (equal, less) comparator pair, each a share.
type comparator struct {
	eq algebra.Element
	lt algebra.Element
}

// foldSlot names which of the two products a MULT submachine within a
// round is computing: the fold of two equality comparators, or the
// cross-term needed to fold the less comparator.
type foldSlot uint8

const (
	slotEqEq foldSlot = iota
	slotEqLt
)

// Message tags an inner MULT message with the round and pair index it
// belongs to, so late arrivals from a prior round are rejected as
// out-of-order rather than silently misapplied.
type Message struct {
	Round    uint32
	PairIdx  int
	Slot     foldSlot
	Inner    mult.Message
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// State drives one LESS-THAN instance to completion.
type State struct {
	sharer    shamir.Sharer
	self      PartyID
	roundBase uint32
	round     uint32
	prime     algebra.SafePrime

	comparators []comparator
	active      map[int]*pairFold
	started     bool
}

type pairFold struct {
	eqEq *mult.State
	eqLt *mult.State
	eq1  algebra.Element // high digit's eq, carried for the lt combination
	lt1  algebra.Element // high digit's lt
	done struct {
		eqEq bool
		eqLt bool
	}
	eqResult algebra.Element
	ltCross  algebra.Element
}

// New decomposes the public comparand c into quaternary digit pairs
// (most-significant digit first) and builds the initial per-digit
// comparators from the supplied preprocessing digits (ordered to match).
func New(sharer shamir.Sharer, self PartyID, roundBase uint32, prime algebra.SafePrime, comparand *big.Int, digits []QuaternaryDigit) (*State, error) {
	bits := comparandBits(comparand, len(digits)*2)
	if len(bits)/2 != len(digits) {
		return nil, fmt.Errorf("compare: digit count %d does not match comparand decomposition", len(digits))
	}
	comparators := make([]comparator, len(digits))
	for i, digit := range digits {
		c1 := bits[2*i]
		c0 := bits[2*i+1]
		comparators[i] = buildComparator(prime, digit, c1, c0)
	}
	return &State{
		sharer:      sharer,
		self:        self,
		roundBase:   roundBase,
		round:       roundBase,
		prime:       prime,
		comparators: comparators,
	}, nil
}

// comparandBits returns the bits of c, most-significant first, padded to
// exactly n bits.
func comparandBits(c *big.Int, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = c.Bit(i) == 1
	}
	return out
}

// buildComparator computes the closed-form (equal, less) comparator for
// one quaternary digit given the public bit pair (c1,c0) and the digit's
// share triple (r0,r1,rr=r0*r1).
func buildComparator(prime algebra.SafePrime, d QuaternaryDigit, c1, c0 bool) comparator {
	one := algebra.One(prime)
	switch {
	case !c1 && !c0: // (0,0)
		eq := one.Sub(d.R0).Sub(d.R1).Add(d.RR)
		lt := d.R0.Add(d.R1).Sub(d.RR)
		return comparator{eq: eq, lt: lt}
	case !c1 && c0: // (0,1)
		return comparator{eq: d.R0.Sub(d.RR), lt: d.R1}
	case c1 && !c0: // (1,0)
		return comparator{eq: d.R1.Sub(d.RR), lt: d.RR}
	default: // (1,1)
		return comparator{eq: d.RR, lt: algebra.Zero(prime)}
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string {
	return fmt.Sprintf("compare.State(round=%d, remaining=%d)", s.round, len(s.comparators))
}

// IsCompleted is true until TryNext has run: the first folding round can
// start as soon as the per-digit comparators are built.
func (s *State) IsCompleted() bool { return !s.started }

// TryNext starts the first folding round, or immediately returns Final if
// there was only one digit to begin with.
func (s *State) TryNext() (Output, error) {
	s.started = true
	if len(s.comparators) == 1 {
		return statemachine.Final[*State, PartyID, Message, algebra.Element](s.comparators[0].lt), nil
	}
	return s.startRound()
}

func (s *State) startRound() (Output, error) {
	if len(s.comparators)%2 != 0 {
		return Output{}, fmt.Errorf("compare: odd comparator count %d mid-fold", len(s.comparators))
	}
	s.active = make(map[int]*pairFold, len(s.comparators)/2)
	var out []statemachine.Message[PartyID, Message]
	for i := 0; i < len(s.comparators); i += 2 {
		pairIdx := i / 2
		hi, lo := s.comparators[i], s.comparators[i+1]
		pf := &pairFold{eq1: hi.eq, lt1: hi.lt}
		pf.eqEq = mult.New(s.sharer, s.self, s.round, hi.eq, lo.eq)
		pf.eqLt = mult.New(s.sharer, s.self, s.round, hi.eq, lo.lt)
		s.active[pairIdx] = pf

		eqMsgs, err := pf.eqEq.TryNext()
		if err != nil {
			return Output{}, err
		}
		out = append(out, wrapMult(eqMsgs, s.round, pairIdx, slotEqEq)...)

		ltMsgs, err := pf.eqLt.TryNext()
		if err != nil {
			return Output{}, err
		}
		out = append(out, wrapMult(ltMsgs, s.round, pairIdx, slotEqLt)...)
	}
	return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, out), nil
}

func wrapMult(out Output2, round uint32, pairIdx int, slot foldSlot) []statemachine.Message[PartyID, Message] {
	msgs, ok := out.IntoMessages()
	if !ok {
		return nil
	}
	wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
	for i, m := range msgs {
		wrapped[i] = statemachine.Wrap(m, func(inner mult.Message) Message {
			return Message{Round: round, PairIdx: pairIdx, Slot: slot, Inner: inner}
		})
	}
	return wrapped
}

// Output2 is an alias avoiding repetition of the MULT submachine's Output
// instantiation at each call site.
type Output2 = statemachine.Output[*mult.State, PartyID, mult.Message, algebra.Element]

// HandleMessage routes to the pair-fold the message is tagged for.
func (s *State) HandleMessage(msg Message) (Output, error) {
	if msg.Round != s.round {
		return statemachine.OutOfOrder[*State, PartyID, Message, algebra.Element](s, msg), nil
	}
	pf, ok := s.active[msg.PairIdx]
	if !ok {
		return statemachine.OutOfOrder[*State, PartyID, Message, algebra.Element](s, msg), nil
	}
	var sub *mult.State
	if msg.Slot == slotEqEq {
		sub = pf.eqEq
	} else {
		sub = pf.eqLt
	}
	out, err := sub.HandleMessage(msg.Inner)
	if err != nil {
		return Output{}, err
	}
	if final, ok := out.IntoFinal(); ok {
		if msg.Slot == slotEqEq {
			pf.eqResult = final
			pf.done.eqEq = true
		} else {
			pf.ltCross = final
			pf.done.eqLt = true
		}
	}
	if !allDone(s.active) {
		return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
	}
	return s.finishRound()
}

func allDone(active map[int]*pairFold) bool {
	for _, pf := range active {
		if !pf.done.eqEq || !pf.done.eqLt {
			return false
		}
	}
	return true
}

func (s *State) finishRound() (Output, error) {
	next := make([]comparator, len(s.active))
	for idx, pf := range s.active {
		next[idx] = comparator{
			eq: pf.eqResult,
			lt: pf.lt1.Add(pf.ltCross),
		}
	}
	s.comparators = next
	s.round++
	s.active = nil
	if len(s.comparators) == 1 {
		return statemachine.Final[*State, PartyID, Message, algebra.Element](s.comparators[0].lt), nil
	}
	return s.startRound()
}
