// Package division implements DIVISION-INTEGER-SECRET: divide a secret
// share by a public divisor. The approach composes TRUNC rather than a
// bit-exact long-division circuit: a preprocessed fixed-point reciprocal
// of the divisor is multiplied in locally (multiplying a share by a
// public constant needs no interaction) and truncated to recover the
// quotient. This intentionally omits the LESS-THAN-based off-by-one
// correction round a bit-exact implementation would add on top (the
// truncated fixed-point reciprocal can be off by one at the boundary);
// see DESIGN.md for the scope note. The phases are still structured so a
// correction round can be layered on by wrapping this state the same way
// it wraps TRUNC.
package division

import (
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/truncation"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// ReciprocalShift is the fixed-point precision (in bits) the preprocessed
// reciprocal approximation is scaled by.
const ReciprocalShift = 32

// Message wraps the single inner TRUNC submachine's message.
type Message struct {
	Trunc truncation.Message
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// State drives one DIVISION-INTEGER-SECRET instance.
type State struct {
	trunc *truncation.State
}

// New builds a division instance computing floor(x/divisor) as a share,
// given a preprocessed fixed-point reciprocal share (already scaled by
// 2^ReciprocalShift/divisor) and its corresponding truncation mask
// material.
func New(sharer shamir.Sharer, self PartyID, truncOpenRound uint32, prime algebra.SafePrime, x, reciprocalShare, maskShare, maskShiftedShare algebra.Element) *State {
	scaledProduct := x.Mul(reciprocalShare)
	return &State{
		trunc: truncation.New(sharer, self, truncOpenRound, prime, truncation.Trunc, ReciprocalShift, scaledProduct, maskShare, maskShiftedShare),
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string { return fmt.Sprintf("division.State(%s)", s.trunc) }

// IsCompleted delegates to the inner TRUNC.
func (s *State) IsCompleted() bool { return s.trunc.IsCompleted() }

// TryNext advances the inner TRUNC.
func (s *State) TryNext() (Output, error) {
	out, err := s.trunc.TryNext()
	if err != nil {
		return Output{}, err
	}
	return s.lift(out)
}

// HandleMessage forwards to the inner TRUNC.
func (s *State) HandleMessage(msg Message) (Output, error) {
	out, err := s.trunc.HandleMessage(msg.Trunc)
	if err != nil {
		return Output{}, err
	}
	return s.lift(out)
}

func (s *State) lift(out truncation.Output) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
		for i, m := range msgs {
			wrapped[i] = statemachine.Wrap(m, func(inner truncation.Message) Message { return Message{Trunc: inner} })
		}
		return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, wrapped), nil
	}
	if quotient, ok := out.IntoFinal(); ok {
		return statemachine.Final[*State, PartyID, Message, algebra.Element](quotient), nil
	}
	return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
}
