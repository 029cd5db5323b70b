// Package transport moves exec.RoutedMessage payloads between cluster
// members. The shape here is tau's core/node.Node: a Run loop selecting
// over a done channel, an inbound Receiver, and an outbound Sender, with
// a buffer decoupling delivery from send-back-pressure. This version
// replaces tau's Addr/generic Message with this node's own PartyID and
// a Packet carrying one exec.RoutedMessage's payload plus which step of
// which computation it belongs to, since a cluster member multiplexes
// many concurrently running protocol instances rather than one VM.
package transport

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/NillionNetwork/nilvm-sub002/core/exec"
)

// PartyID identifies a cluster member, the same type exec.Router keys
// protocol instances' senders and receivers by.
type PartyID = exec.PartyID

// Packet is one protocol message in flight between two cluster members,
// addressed to a specific step of a specific computation so the receiving
// node can hand it to exec.Router.Deliver without any further framing.
type Packet struct {
	From        PartyID
	Computation string
	Step        int
	Payload     []byte
}

// Sender and Receiver mirror tau's directional channel aliases, narrowed
// to Packet instead of a generic buffer.Message.
type Sender chan<- Packet
type Receiver <-chan Packet

// Channels is the cluster-wide send/receive surface a VM driving loop
// needs: one outbound channel per peer plus one shared inbound channel
// for everything addressed to this node. Peers is addressed by PartyID
// rather than tau's Addr since party identity is fixed for the lifetime
// of a cluster, not discovered at runtime.
type Channels struct {
	Self    PartyID
	Inbound Receiver
	Peers   map[PartyID]Sender
}

// Broadcast sends pkt to every peer in Peers. A send that would block
// past ctx's cancellation is abandoned rather than blocking the caller
// forever on a stalled peer.
func (c Channels) Broadcast(ctx context.Context, pkt Packet) {
	for id, out := range c.Peers {
		if id == c.Self {
			continue
		}
		select {
		case out <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

// SendTo delivers pkt to a single peer, returning false if no sender is
// registered for that PartyID.
func (c Channels) SendTo(ctx context.Context, to PartyID, pkt Packet) bool {
	out, ok := c.Peers[to]
	if !ok {
		return false
	}
	select {
	case out <- pkt:
	case <-ctx.Done():
	}
	return true
}

// InProcessCluster wires up an all-to-all set of buffered channels
// connecting every party in ids, for single-process tests and the
// single-machine bootstrap path. Production deployments replace this
// with a gRPC-backed Channels per SPEC_FULL.md §9's transport note;
// the Packet/Channels shape above is unchanged either way.
func InProcessCluster(ids []PartyID, bufSize int) map[PartyID]Channels {
	inboxes := make(map[PartyID]chan Packet, len(ids))
	for _, id := range ids {
		inboxes[id] = make(chan Packet, bufSize)
	}

	result := make(map[PartyID]Channels, len(ids))
	for _, id := range ids {
		peers := make(map[PartyID]Sender, len(ids))
		for _, other := range ids {
			peers[other] = inboxes[other]
		}
		result[id] = Channels{Self: id, Inbound: inboxes[id], Peers: peers}
	}
	return result
}

// Run drains c.Inbound, handing each Packet to deliver, until ctx is
// cancelled or the inbound channel is closed. log mirrors tau's
// log.Printf("[info] (node) terminating") lifecycle line via logrus.
func Run(ctx context.Context, c Channels, log *logrus.Entry, deliver func(Packet)) {
	defer log.Info("transport terminating")
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-c.Inbound:
			if !ok {
				return
			}
			deliver(pkt)
		}
	}
}
