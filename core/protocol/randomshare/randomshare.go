// Package randomshare implements the one-round joint-random-sharing
// primitive several protocols build on: every party deals a fresh
// degree-t share of a locally drawn random element; once every party's
// contribution has arrived, each party locally sums the shares it
// received at its own index, producing a share of a value that is
// uniformly random as long as at least one participant was honest. No
// further interaction (and no reveal) is needed, since Shamir sharing is
// additively homomorphic in the shares themselves.
package randomshare

import (
	"crypto/rand"
	"fmt"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

func randomElement(sp algebra.SafePrime) algebra.Element {
	prime := algebra.SpecFor(sp).Prime
	n, err := rand.Int(rand.Reader, prime)
	if err != nil {
		panic("randomshare: failed to draw randomness: " + err.Error())
	}
	return algebra.FromBigInt(sp, n)
}

// PartyID identifies a party within a protocol instance.
type PartyID = shamir.PartyID

// Message carries one party's dealt share of its own local randomness.
type Message struct {
	From    PartyID
	RoundID uint32
	Share   algebra.Element
}

// Output is the shape of every transition this protocol returns.
type Output = statemachine.Output[*State, PartyID, Message, algebra.Element]

// State drives one joint random-sharing instance.
type State struct {
	sharer  shamir.Sharer
	self    PartyID
	roundID uint32
	prime   algebra.SafePrime
	sum     algebra.Element
	seen    map[PartyID]struct{}
	started bool
}

// New builds a random-sharing instance over the given prime width.
func New(sharer shamir.Sharer, self PartyID, roundID uint32, prime algebra.SafePrime) *State {
	return &State{
		sharer:  sharer,
		self:    self,
		roundID: roundID,
		prime:   prime,
		sum:     algebra.Zero(prime),
		seen:    make(map[PartyID]struct{}, len(sharer.Parties())),
	}
}

var _ statemachine.State[*State, PartyID, Message, algebra.Element] = (*State)(nil)

func (s *State) String() string {
	return fmt.Sprintf("randomshare.State(round=%d, collected=%d/%d)", s.roundID, len(s.seen), len(s.sharer.Parties()))
}

// IsCompleted is true until TryNext has run: the machine can deal its own
// randomness without waiting on anyone.
func (s *State) IsCompleted() bool { return !s.started }

// TryNext draws a local random element, deals a degree-t sharing of it to
// every party (including a self-delivered share), and folds the self-share
// into the running sum immediately.
func (s *State) TryNext() (Output, error) {
	s.started = true
	secret := randomElement(s.prime)
	shares := s.sharer.Split(secret)
	msgs := make([]statemachine.Message[PartyID, Message], 0, len(shares))
	for _, sh := range shares {
		if sh.Party == s.self {
			s.sum = s.sum.Add(sh.Value)
			s.seen[s.self] = struct{}{}
			continue
		}
		msgs = append(msgs, statemachine.Message[PartyID, Message]{
			Recipient: statemachine.Single(sh.Party),
			Body:      Message{From: s.self, RoundID: s.roundID, Share: sh.Value},
		})
	}
	return statemachine.Messages[*State, PartyID, Message, algebra.Element](s, msgs), nil
}

// HandleMessage folds in one party's dealt share; once every party has
// dealt, the running sum is the final jointly random share.
func (s *State) HandleMessage(msg Message) (Output, error) {
	if msg.RoundID != s.roundID {
		return statemachine.OutOfOrder[*State, PartyID, Message, algebra.Element](s, msg), nil
	}
	if _, ok := s.seen[msg.From]; ok {
		return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
	}
	s.seen[msg.From] = struct{}{}
	s.sum = s.sum.Add(msg.Share)
	if len(s.seen) < len(s.sharer.Parties()) {
		return statemachine.Empty[*State, PartyID, Message, algebra.Element](s), nil
	}
	return statemachine.Final[*State, PartyID, Message, algebra.Element](s.sum), nil
}
