// Package randombitwise implements RANDOM-BITWISE: generate a share of a
// random field element together with a share of each of its individual
// bits, by driving one RANDOM-BIT instance per bit position in parallel
// and combining them. Two variants: Full decomposes every bit of the
// prime's bit length; Sized decomposes a caller-chosen number of low bits,
// leaving the element's high bits unconstrained (cheaper when only a
// bounded-size random value is needed, e.g. as a mask).
package randombitwise

import (
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/randombit"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// Variant selects how many bits are decomposed.
type Variant uint8

const (
	// Full decomposes every bit of the prime's bit length.
	Full Variant = iota
	// Sized decomposes only a caller-chosen number of low bits.
	Sized
)

// Message carries one bit-index's randombit submachine message.
type Message struct {
	BitIndex int
	Inner    randombit.Message
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, Result]

// Result bundles the random element's share and its per-bit shares,
// lowest bit first.
type Result struct {
	Element algebra.Element
	Bits    []algebra.Element
}

// State drives `bits` independent RANDOM-BIT instances to completion.
type State struct {
	sharer  shamir.Sharer
	self    PartyID
	prime   algebra.SafePrime
	inner   []*randombit.State
	results []*algebra.Element
	pending int
}

// New builds a RANDOM-BITWISE instance. roundBase is the round id of the
// first bit; each bit instance claims three consecutive round ids (one per
// randombit phase), so callers composing this inside a larger protocol
// should reserve `3*bitCount(variant, size)` round ids starting here.
func New(sharer shamir.Sharer, self PartyID, roundBase uint32, prime algebra.SafePrime, variant Variant, size int) *State {
	n := bitCount(prime, variant, size)
	s := &State{
		sharer:  sharer,
		self:    self,
		prime:   prime,
		inner:   make([]*randombit.State, n),
		results: make([]*algebra.Element, n),
		pending: n,
	}
	for i := 0; i < n; i++ {
		s.inner[i] = randombit.New(sharer, self, roundBase+uint32(3*i), prime)
	}
	return s
}

func bitCount(prime algebra.SafePrime, variant Variant, size int) int {
	if variant == Full {
		return prime.Bits()
	}
	return size
}

var _ statemachine.State[*State, PartyID, Message, Result] = (*State)(nil)

func (s *State) String() string {
	return fmt.Sprintf("randombitwise.State(pending=%d/%d)", s.pending, len(s.inner))
}

// IsCompleted reports whether any inner instance still needs its initial
// kick — true at construction, since every inner instance starts fresh.
func (s *State) IsCompleted() bool {
	for _, inner := range s.inner {
		if inner != nil && inner.IsCompleted() {
			return true
		}
	}
	return false
}

// TryNext kicks off every bit instance, collecting their first-round
// messages.
func (s *State) TryNext() (Output, error) {
	var out []statemachine.Message[PartyID, Message]
	for i, inner := range s.inner {
		next, err := inner.TryNext()
		if err != nil {
			return Output{}, fmt.Errorf("randombitwise: bit %d: %w", i, err)
		}
		lifted, err := s.absorb(i, next)
		if err != nil {
			return Output{}, err
		}
		out = append(out, lifted...)
	}
	if s.pending == 0 {
		return s.finalize()
	}
	return statemachine.Messages[*State, PartyID, Message, Result](s, out), nil
}

// HandleMessage routes to the addressed bit instance.
func (s *State) HandleMessage(msg Message) (Output, error) {
	if msg.BitIndex < 0 || msg.BitIndex >= len(s.inner) || s.inner[msg.BitIndex] == nil {
		return statemachine.OutOfOrder[*State, PartyID, Message, Result](s, msg), nil
	}
	out, err := s.inner[msg.BitIndex].HandleMessage(msg.Inner)
	if err != nil {
		return Output{}, fmt.Errorf("randombitwise: bit %d: %w", msg.BitIndex, err)
	}
	lifted, err := s.absorb(msg.BitIndex, out)
	if err != nil {
		return Output{}, err
	}
	if s.pending == 0 {
		return s.finalize()
	}
	if len(lifted) == 0 {
		return statemachine.Empty[*State, PartyID, Message, Result](s), nil
	}
	return statemachine.Messages[*State, PartyID, Message, Result](s, lifted), nil
}

func (s *State) absorb(i int, out statemachine.Output[*randombit.State, PartyID, randombit.Message, randombit.Result]) ([]statemachine.Message[PartyID, Message], error) {
	if msgs, ok := out.IntoMessages(); ok {
		wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
		for j, m := range msgs {
			wrapped[j] = statemachine.Wrap(m, func(inner randombit.Message) Message {
				return Message{BitIndex: i, Inner: inner}
			})
		}
		return wrapped, nil
	}
	if final, ok := out.IntoFinal(); ok {
		if final.Degenerate {
			return nil, fmt.Errorf("randombitwise: bit %d drew a degenerate random bit, instance must be retried", i)
		}
		v := final.BitShare
		s.results[i] = &v
		s.inner[i] = nil
		s.pending--
	}
	return nil, nil
}

func (s *State) finalize() (Output, error) {
	sum := algebra.Zero(s.prime)
	bits := make([]algebra.Element, len(s.results))
	two := algebra.FromUint64(s.prime, 2)
	power := algebra.One(s.prime)
	for i, bit := range s.results {
		bits[i] = *bit
		sum = sum.Add(bit.Mul(power))
		power = power.Mul(two)
	}
	return statemachine.Final[*State, PartyID, Message, Result](Result{Element: sum, Bits: bits}), nil
}
