// Package open implements the reveal (public output) protocol: every party
// broadcasts its share of a value and, once threshold+1 shares have
// arrived, reconstructs the plaintext via Lagrange interpolation.
package open

import (
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// Message is one party's broadcast share of the value being opened.
type Message struct {
	From    PartyID
	RoundID uint32
	Share   algebra.Element
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// State drives one OPEN instance to completion.
type State struct {
	sharer  shamir.Sharer
	self    PartyID
	roundID uint32
	own     algebra.Element
	shares  map[PartyID]algebra.Element
	started bool
}

// New builds an OPEN state machine revealing the given local share.
func New(sharer shamir.Sharer, self PartyID, roundID uint32, localShare algebra.Element) *State {
	return &State{
		sharer:  sharer,
		self:    self,
		roundID: roundID,
		own:     localShare,
		shares:  map[PartyID]algebra.Element{self: localShare},
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string {
	return fmt.Sprintf("open.State(round=%d, collected=%d)", s.roundID, len(s.shares))
}

// IsCompleted is true until TryNext has run: broadcasting the local share
// requires no prior input.
func (s *State) IsCompleted() bool { return !s.started }

// TryNext broadcasts the local share to every other party.
func (s *State) TryNext() (Output, error) {
	s.started = true
	msgs := make([]statemachine.Message[PartyID, Message], 0, len(s.sharer.Parties())-1)
	for _, party := range s.sharer.Parties() {
		if party == s.self {
			continue
		}
		msgs = append(msgs, statemachine.Message[PartyID, Message]{
			Recipient: statemachine.Single(party),
			Body:      Message{From: s.self, RoundID: s.roundID, Share: s.own},
		})
	}
	return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, msgs), nil
}

// HandleMessage folds in one party's revealed share; once threshold+1
// shares are present, recovers and terminates.
func (s *State) HandleMessage(msg Message) (Output, error) {
	if msg.RoundID != s.roundID {
		return statemachine.OutOfOrder[*State, PartyID, Message, algebra.Element](s, msg), nil
	}
	s.shares[msg.From] = msg.Share
	if len(s.shares) < s.sharer.Degree()+1 {
		return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
	}
	shares := make([]shamir.Share, 0, len(s.shares))
	for party, value := range s.shares {
		shares = append(shares, shamir.Share{Party: party, Value: value})
	}
	result, err := s.sharer.Recover(shares)
	if err != nil {
		return Output{}, fmt.Errorf("open: recovering revealed value: %w", err)
	}
	return statemachine.Final[*State, PartyID, Message, algebra.Element](result), nil
}
