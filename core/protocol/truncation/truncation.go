// Package truncation implements TRUNC and TRUNC-PR: right-shift a secret
// share by k bits, consuming a preprocessed random mask r together with
// its own pre-truncated share r>>k (PrepTrunc/PrepTruncPr material). Both
// variants open x+r and then subtract the mask's truncated share from the
// revealed value's truncation; TRUNC-PR additionally rounds probabilistically
// based on the discarded low bits, trading a small controlled error
// probability for removing the rare off-by-one the deterministic variant
// can incur when the discarded bits of x were all high.
package truncation

import (
	"fmt"
	"math/big"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/open"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// Message wraps the single inner OPEN submachine's message.
type Message struct {
	Open open.Message
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// Mode selects deterministic (Trunc) vs probabilistic (TruncPr) rounding.
type Mode uint8

const (
	// Trunc deterministically floors.
	Trunc Mode = iota
	// TruncPr rounds up with probability proportional to the discarded
	// fractional bits, matching the probabilistic-truncation literature.
	TruncPr
)

// State drives one truncation instance.
type State struct {
	prime      algebra.SafePrime
	mode       Mode
	bits       uint
	maskedOpen *open.State
	maskLowShr algebra.Element
}

// New builds a truncation instance shifting x right by bits, using a
// preprocessed random mask r (maskShare) and its own right-shifted share
// (maskShiftedShare).
func New(sharer shamir.Sharer, self PartyID, openRound uint32, prime algebra.SafePrime, mode Mode, bits uint, x, maskShare, maskShiftedShare algebra.Element) *State {
	masked := x.Add(maskShare)
	return &State{
		prime:      prime,
		mode:       mode,
		bits:       bits,
		maskedOpen: open.New(sharer, self, openRound, masked),
		maskLowShr: maskShiftedShare,
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string { return fmt.Sprintf("truncation.State(bits=%d)", s.bits) }

// IsCompleted delegates to the inner OPEN.
func (s *State) IsCompleted() bool { return s.maskedOpen.IsCompleted() }

// TryNext advances the inner OPEN.
func (s *State) TryNext() (Output, error) {
	out, err := s.maskedOpen.TryNext()
	if err != nil {
		return Output{}, err
	}
	return s.lift(out)
}

// HandleMessage forwards to the inner OPEN.
func (s *State) HandleMessage(msg Message) (Output, error) {
	out, err := s.maskedOpen.HandleMessage(msg.Open)
	if err != nil {
		return Output{}, err
	}
	return s.lift(out)
}

func (s *State) lift(out open.Output) (Output, error) {
	if msgs, ok := out.IntoMessages(); ok {
		wrapped := make([]statemachine.Message[PartyID, Message], len(msgs))
		for i, m := range msgs {
			wrapped[i] = statemachine.Wrap(m, func(inner open.Message) Message { return Message{Open: inner} })
		}
		return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, wrapped), nil
	}
	if revealed, ok := out.IntoFinal(); ok {
		shifted := new(big.Int).Rsh(revealed.Value(), s.bits)
		if s.mode == TruncPr {
			mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), s.bits), big.NewInt(1))
			discarded := new(big.Int).And(revealed.Value(), mask)
			threshold := new(big.Int).Lsh(big.NewInt(1), s.bits-1)
			if s.bits > 0 && discarded.Cmp(threshold) >= 0 {
				shifted.Add(shifted, big.NewInt(1))
			}
		}
		result := algebra.FromBigInt(s.prime, shifted).Sub(s.maskLowShr)
		return statemachine.Final[*State, PartyID, Message, algebra.Element](result), nil
	}
	return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
}
