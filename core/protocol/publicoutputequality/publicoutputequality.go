// Package publicoutputequality implements PUBLIC-OUTPUT-EQUALITY: the same
// blinding-mask equality test as the equals package, except the terminal
// result is the revealed public boolean itself rather than a lifted
// secret share, since callers of this protocol have already committed to
// a program point where the comparison result is a public output.
package publicoutputequality

import (
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/mult"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/open"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

type phase uint8

const (
	phaseMult phase = iota
	phaseOpen
)

// Message wraps exactly one inner submachine's message, tagged by phase.
type Message struct {
	Phase phase
	Mult  mult.Message
	Open  open.Message
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, bool]

// State drives one PUBLIC-OUTPUT-EQUALITY instance through its two phases.
type State struct {
	sharer    shamir.Sharer
	self      PartyID
	openRound uint32
	phase     phase
	product   *mult.State
	reveal    *open.State
}

// New builds a PUBLIC-OUTPUT-EQUALITY instance comparing shares a and b,
// consuming one preprocessed random nonzero element r.
func New(sharer shamir.Sharer, self PartyID, multRound, openRound uint32, a, b, r algebra.Element) *State {
	diff := a.Sub(b)
	return &State{
		sharer:    sharer,
		self:      self,
		openRound: openRound,
		phase:     phaseMult,
		product:   mult.New(sharer, self, multRound, diff, r),
	}
}

var _ statemachine.State[*State, PartyID, Message, bool] = (*State)(nil)

func (s *State) String() string { return fmt.Sprintf("publicoutputequality.State(phase=%d)", s.phase) }

// IsCompleted delegates to whichever inner machine is active.
func (s *State) IsCompleted() bool {
	if s.phase == phaseMult {
		return s.product.IsCompleted()
	}
	return s.reveal.IsCompleted()
}

// TryNext advances the active inner machine.
func (s *State) TryNext() (Output, error) {
	if s.phase == phaseMult {
		out, err := s.product.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftMult(out)
	}
	out, err := s.reveal.TryNext()
	if err != nil {
		return Output{}, err
	}
	return s.liftOpen(out)
}

// HandleMessage routes to the active phase.
func (s *State) HandleMessage(msg Message) (Output, error) {
	if msg.Phase != s.phase {
		return statemachine.OutOfOrder[*State, PartyID, Message, bool](s, msg), nil
	}
	if s.phase == phaseMult {
		out, err := s.product.HandleMessage(msg.Mult)
		if err != nil {
			return Output{}, err
		}
		return s.liftMult(out)
	}
	out, err := s.reveal.HandleMessage(msg.Open)
	if err != nil {
		return Output{}, err
	}
	return s.liftOpen(out)
}

func (s *State) liftMult(out mult.Output) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
		for i, m := range msgs {
			wrapped[i] = statemachine.Wrap(m, func(inner mult.Message) Message { return Message{Phase: phaseMult, Mult: inner} })
		}
		return statemachine.Messages[*State, PartyID, Message, bool](s, wrapped), nil
	}
	if product, ok := out.IntoFinal(); ok {
		s.phase = phaseOpen
		s.reveal = open.New(s.sharer, s.self, s.openRound, product)
		next, err := s.reveal.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftOpen(next)
	}
	return statemachine.Empty[*State, PartyID, Message, bool](s), nil
}

func (s *State) liftOpen(out open.Output) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
		for i, m := range msgs {
			wrapped[i] = statemachine.Wrap(m, func(inner open.Message) Message { return Message{Phase: phaseOpen, Open: inner} })
		}
		return statemachine.Messages[*State, PartyID, Message, bool](s, wrapped), nil
	}
	if revealed, ok := out.IntoFinal(); ok {
		return statemachine.Final[*State, PartyID, Message, bool](revealed.IsZero()), nil
	}
	return statemachine.Empty[*State, PartyID, Message, bool](s), nil
}
