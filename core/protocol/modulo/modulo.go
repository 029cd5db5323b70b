// Package modulo implements MODULO: x mod m for a secret share x and
// public modulus m, computed as x - m*floor(x/m) by wrapping the division
// protocol and finishing with a local public-scalar multiply and subtract
// (neither needs interaction).
package modulo

import (
	"fmt"
	"math/big"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/division"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// Message wraps the single inner DIVISION submachine's message.
type Message struct {
	Division division.Message
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// State drives one MODULO instance.
type State struct {
	prime    algebra.SafePrime
	modulus  *big.Int
	x        algebra.Element
	division *division.State
}

// New builds a MODULO instance, reusing DIVISION's preprocessing material.
func New(sharer shamir.Sharer, self PartyID, truncOpenRound uint32, prime algebra.SafePrime, modulus *big.Int, x, reciprocalShare, maskShare, maskShiftedShare algebra.Element) *State {
	return &State{
		prime:    prime,
		modulus:  modulus,
		x:        x,
		division: division.New(sharer, self, truncOpenRound, prime, x, reciprocalShare, maskShare, maskShiftedShare),
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string { return fmt.Sprintf("modulo.State(%s)", s.division) }

// IsCompleted delegates to the inner DIVISION.
func (s *State) IsCompleted() bool { return s.division.IsCompleted() }

// TryNext advances the inner DIVISION.
func (s *State) TryNext() (Output, error) {
	out, err := s.division.TryNext()
	if err != nil {
		return Output{}, err
	}
	return s.lift(out)
}

// HandleMessage forwards to the inner DIVISION.
func (s *State) HandleMessage(msg Message) (Output, error) {
	out, err := s.division.HandleMessage(msg.Division)
	if err != nil {
		return Output{}, err
	}
	return s.lift(out)
}

func (s *State) lift(out division.Output) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
		for i, m := range msgs {
			wrapped[i] = statemachine.Wrap(m, func(inner division.Message) Message { return Message{Division: inner} })
		}
		return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, wrapped), nil
	}
	if quotient, ok := out.IntoFinal(); ok {
		mElem := algebra.FromBigInt(s.prime, s.modulus)
		remainder := s.x.Sub(mElem.Mul(quotient))
		return statemachine.Final[*State, PartyID, Message, algebra.Element](remainder), nil
	}
	return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
}
