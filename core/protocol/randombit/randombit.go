// Package randombit implements the RANDOM-BIT protocol: parties jointly
// produce a share of a uniformly random bit via the classic square-root
// trick (Bar-Ilan–Beaver style): sample a joint random element r, reveal
// r^2, and use its square root to collapse r to ±1, then affinely map that
// to {0,1}. Requires no preprocessing.
package randombit

import (
	"fmt"
	"math/big"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/mult"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/open"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/randomshare"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// phase names which inner submachine the composite is currently driving.
type phase uint8

const (
	phaseRandom phase = iota
	phaseSquare
	phaseOpen
)

// Message wraps exactly one inner submachine's message, tagged with which
// phase it belongs to so a receiver still in an earlier phase can
// recognize it as out-of-order rather than malformed.
type Message struct {
	Phase  phase
	Random randomshare.Message
	Square mult.Message
	Open   open.Message
}

// Output is the shape of every transition this protocol returns. On a
// degenerate draw (r happened to be 0) the terminal result is a Final
// Result with Degenerate set, in which case the caller should retry with a
// fresh instance.
type Output = statemachine.Output[*State, PartyID, Message, Result]

// Result is a successful RANDOM-BIT output, or a degenerate-draw signal.
type Result struct {
	Degenerate bool
	BitShare   algebra.Element
}

// State drives one RANDOM-BIT instance through its three phases.
type State struct {
	sharer  shamir.Sharer
	self    PartyID
	roundID uint32
	prime   algebra.SafePrime

	phase  phase
	random *randomshare.State
	square *mult.State
	reveal *open.State
	r      algebra.Element
}

// New builds a RANDOM-BIT instance.
func New(sharer shamir.Sharer, self PartyID, roundID uint32, prime algebra.SafePrime) *State {
	return &State{
		sharer:  sharer,
		self:    self,
		roundID: roundID,
		prime:   prime,
		phase:   phaseRandom,
		random:  randomshare.New(sharer, self, roundID, prime),
	}
}

var _ statemachine.State[*State, PartyID, Message, Result] = (*State)(nil)

func (s *State) String() string {
	return fmt.Sprintf("randombit.State(phase=%d)", s.phase)
}

// IsCompleted delegates to whichever inner machine is currently active.
func (s *State) IsCompleted() bool {
	switch s.phase {
	case phaseRandom:
		return s.random.IsCompleted()
	case phaseSquare:
		return s.square.IsCompleted()
	default:
		return s.reveal.IsCompleted()
	}
}

// TryNext advances whichever inner machine is active, wrapping its
// outbound messages in the phase tag.
func (s *State) TryNext() (Output, error) {
	switch s.phase {
	case phaseRandom:
		out, err := s.random.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftRandomOutput(out)
	case phaseSquare:
		out, err := s.square.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftSquareOutput(out)
	default:
		out, err := s.reveal.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftOpenOutput(out)
	}
}

// HandleMessage routes an inbound message to the phase it is tagged for,
// returning OutOfOrder if that phase isn't active yet.
func (s *State) HandleMessage(msg Message) (Output, error) {
	switch msg.Phase {
	case phaseRandom:
		if s.phase != phaseRandom {
			return statemachine.OutOfOrder[*State, PartyID, Message, Result](s, msg), nil
		}
		out, err := s.random.HandleMessage(msg.Random)
		if err != nil {
			return Output{}, err
		}
		return s.liftRandomOutput(out)
	case phaseSquare:
		if s.phase != phaseSquare {
			return statemachine.OutOfOrder[*State, PartyID, Message, Result](s, msg), nil
		}
		out, err := s.square.HandleMessage(msg.Square)
		if err != nil {
			return Output{}, err
		}
		return s.liftSquareOutput(out)
	default:
		if s.phase != phaseOpen {
			return statemachine.OutOfOrder[*State, PartyID, Message, Result](s, msg), nil
		}
		out, err := s.reveal.HandleMessage(msg.Open)
		if err != nil {
			return Output{}, err
		}
		return s.liftOpenOutput(out)
	}
}

func (s *State) liftRandomOutput(out statemachine.Output[*randomshare.State, PartyID, randomshare.Message, algebra.Element]) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		return statemachine.Messages[*State, PartyID, Message, Result](s, wrapMessages(msgs, func(m randomshare.Message) Message {
			return Message{Phase: phaseRandom, Random: m}
		})), nil
	}
	if final, ok := out.IntoFinal(); ok {
		s.r = final
		s.phase = phaseSquare
		s.square = mult.New(s.sharer, s.self, s.roundID+1, final, final)
		next, err := s.square.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftSquareOutput(next)
	}
	return statemachine.Empty[*State, PartyID, Message, Result](s), nil
}

func (s *State) liftSquareOutput(out statemachine.Output[*mult.State, PartyID, mult.Message, algebra.Element]) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		return statemachine.Messages[*State, PartyID, Message, Result](s, wrapMessages(msgs, func(m mult.Message) Message {
			return Message{Phase: phaseSquare, Square: m}
		})), nil
	}
	if final, ok := out.IntoFinal(); ok {
		s.phase = phaseOpen
		s.reveal = open.New(s.sharer, s.self, s.roundID+2, final)
		next, err := s.reveal.TryNext()
		if err != nil {
			return Output{}, err
		}
		return s.liftOpenOutput(next)
	}
	return statemachine.Empty[*State, PartyID, Message, Result](s), nil
}

func (s *State) liftOpenOutput(out statemachine.Output[*open.State, PartyID, open.Message, algebra.Element]) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		return statemachine.Messages[*State, PartyID, Message, Result](s, wrapMessages(msgs, func(m open.Message) Message {
			return Message{Phase: phaseOpen, Open: m}
		})), nil
	}
	if rSquared, ok := out.IntoFinal(); ok {
		if rSquared.IsZero() {
			return statemachine.Final[*State, PartyID, Message, Result](Result{Degenerate: true}), nil
		}
		sqrtInv, err := modularSqrtInverse(s.prime, rSquared)
		if err != nil {
			return Output{}, fmt.Errorf("randombit: %w", err)
		}
		half := algebra.FromUint64(s.prime, 2).Inv()
		bitShare := s.r.Mul(sqrtInv).Add(algebra.One(s.prime)).Mul(half)
		return statemachine.Final[*State, PartyID, Message, Result](Result{BitShare: bitShare}), nil
	}
	return statemachine.Empty[*State, PartyID, Message, Result](s), nil
}

// modularSqrtInverse returns the inverse of a square root of c mod p,
// assuming p ≡ 3 (mod 4), so sqrt(c) = c^((p+1)/4).
func modularSqrtInverse(sp algebra.SafePrime, c algebra.Element) (algebra.Element, error) {
	p := algebra.SpecFor(sp).Prime
	if new(big.Int).Mod(p, big.NewInt(4)).Int64() != 3 {
		return algebra.Element{}, fmt.Errorf("prime width %s is not 3 mod 4, square-root trick unavailable", sp)
	}
	exp := new(big.Int).Add(p, big.NewInt(1))
	exp.Rsh(exp, 2)
	root := c.Exp(exp)
	return root.Inv(), nil
}

func wrapMessages[M any, M2 any](msgs []statemachine.Message[PartyID, M], f func(M) M2) []statemachine.Message[PartyID, M2] {
	out := make([]statemachine.Message[PartyID, M2], len(msgs))
	for i, m := range msgs {
		out[i] = statemachine.Wrap(m, f)
	}
	return out
}
