// Package prototest provides a small in-memory message-passing harness
// shared by every core/protocol package's tests: construct one
// statemachine.Driver per party, then run RunToCompletion to shuttle
// messages between them until every party reaches its Final output. Each
// protocol package still builds its own State instances (they differ in
// every type parameter), but the "deliver messages until done" loop is
// identical across all of them, so it lives here once instead of being
// retyped per package.
package prototest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NillionNetwork/nilvm-sub002/core/shamir"
	"github.com/NillionNetwork/nilvm-sub002/core/statemachine"
)

// PartyID identifies a party within the simulated cluster.
type PartyID = shamir.PartyID

type outbound[M any] struct {
	from PartyID
	msg  statemachine.Message[PartyID, M]
}

// RunToCompletion drives every supplied driver to its Final output,
// routing each outbound message to its recipient (or to every other
// party, for a broadcast) and feeding it in as an inbound Deliver call,
// repeating until no driver has any message left to send. It fails the
// test if any driver never completes within the round budget, which
// would otherwise manifest as a hang.
func RunToCompletion[S statemachine.State[S, PartyID, M, F], M any, F any](t *testing.T, drivers map[PartyID]*statemachine.Driver[S, PartyID, M, F]) map[PartyID]F {
	t.Helper()

	var queue []outbound[M]
	for id, d := range drivers {
		out, err := d.Start()
		require.NoError(t, err)
		for _, m := range out {
			queue = append(queue, outbound[M]{from: id, msg: m})
		}
	}

	const maxRounds = 100000
	for i := 0; i < maxRounds && len(queue) > 0; i++ {
		item := queue[0]
		queue = queue[1:]

		var recipients []PartyID
		if item.msg.Recipient.Kind == statemachine.RecipientSingle {
			recipients = []PartyID{item.msg.Recipient.Single}
		} else {
			for id := range drivers {
				if id != item.from {
					recipients = append(recipients, id)
				}
			}
		}

		for _, to := range recipients {
			d, ok := drivers[to]
			if !ok {
				continue
			}
			out, err := d.Deliver(item.msg.Body)
			require.NoError(t, err)
			for _, m := range out {
				queue = append(queue, outbound[M]{from: to, msg: m})
			}
		}
	}

	results := make(map[PartyID]F, len(drivers))
	for id, d := range drivers {
		require.True(t, d.Done(), "party %d never completed", id)
		results[id] = d.Result()
	}
	return results
}
