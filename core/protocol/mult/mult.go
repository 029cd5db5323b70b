// Package mult implements the single-round secret-times-secret
// multiplication protocol: each party locally multiplies its two input
// shares (landing on a degree-2t polynomial), then the parties jointly
// reshare that product down to degree t using the shamir sharer's
// degree-2T generation and resharing protocol-level weights.
package mult

import (
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// Message is the wire payload for MULT: each party broadcasts its share of
// the reduced-degree product, tagged with the sender and the generation's
// round id so a receiver can reject stale-generation arrivals.
type Message struct {
	From    PartyID
	RoundID uint32
	Share   algebra.Element
}

// State drives one MULT instance to completion. Party values are shares of
// operand a and b at degree t; the output is a fresh degree-t share of a*b.
type State struct {
	sharer   shamir.Sharer
	roundID  uint32
	self     PartyID
	parties  []PartyID
	localAB  algebra.Element
	own      map[PartyID]algebra.Element
	started  bool
}

// New builds a MULT state machine for one pair of degree-t shares.
func New(sharer shamir.Sharer, self PartyID, roundID uint32, a, b algebra.Element) *State {
	return &State{
		sharer:  sharer,
		roundID: roundID,
		self:    self,
		parties: sharer.Parties(),
		localAB: a.Mul(b),
		own:     make(map[PartyID]algebra.Element, len(sharer.Parties())),
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string {
	return fmt.Sprintf("mult.State(round=%d, collected=%d/%d)", s.roundID, len(s.own), len(s.parties))
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// IsCompleted reports whether the machine is ready to emit its first round
// (it always is, immediately after construction).
func (s *State) IsCompleted() bool { return !s.started }

// TryNext re-shares the local product at degree t and broadcasts one share
// per party.
func (s *State) TryNext() (Output, error) {
	s.started = true
	shares := s.sharer.Split(s.localAB)
	msgs := make([]statemachine.Message[PartyID, Message], 0, len(shares))
	for _, sh := range shares {
		if sh.Party == s.self {
			s.own[s.self] = sh.Value
			continue
		}
		msgs = append(msgs, statemachine.Message[PartyID, Message]{
			Recipient: statemachine.Single(sh.Party),
			Body:      Message{From: s.self, RoundID: s.roundID, Share: sh.Value},
		})
	}
	return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, msgs), nil
}

// HandleMessage folds in one party's resharing contribution; once every
// party (including self) has contributed, recovers the degree-t product
// share via Lagrange interpolation and terminates.
func (s *State) HandleMessage(msg Message) (Output, error) {
	if msg.RoundID != s.roundID {
		return statemachine.OutOfOrder[*State, PartyID, Message, algebra.Element](s, msg), nil
	}
	s.own[msg.From] = msg.Share
	if len(s.own) < len(s.parties) {
		return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
	}
	shares := make([]shamir.Share, 0, len(s.own))
	for party, value := range s.own {
		shares = append(shares, shamir.Share{Party: party, Value: value})
	}
	result, err := s.sharer.Recover(shares)
	if err != nil {
		return Output{}, fmt.Errorf("mult: recombining product shares: %w", err)
	}
	return statemachine.Final[*State, PartyID, Message, algebra.Element](result), nil
}
