package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// counterState is a minimal two-round state machine used to exercise the
// generic Output/Driver machinery in isolation from any real protocol:
// TryNext immediately broadcasts, then HandleMessage needs exactly two
// inbound messages (tagged with a round id) before finishing.
type counterState struct {
	round     int
	started   bool
	collected int
}

type counterMsg struct {
	round int
}

func (s *counterState) IsCompleted() bool { return !s.started }

func (s *counterState) TryNext() (Output[*counterState, int, counterMsg, int], error) {
	s.started = true
	return Messages[*counterState, int, counterMsg, int](s, []Message[int, counterMsg]{
		{Recipient: Single(1), Body: counterMsg{round: s.round}},
	}), nil
}

func (s *counterState) HandleMessage(m counterMsg) (Output[*counterState, int, counterMsg, int], error) {
	if m.round != s.round {
		return OutOfOrder[*counterState, int, counterMsg, int](s, m), nil
	}
	s.collected++
	if s.collected < 2 {
		return Empty[*counterState, int, counterMsg, int](s), nil
	}
	return Final[*counterState, int, counterMsg, int](s.collected), nil
}

var _ State[*counterState, int, counterMsg, int] = (*counterState)(nil)

func TestOutputAccessors(t *testing.T) {
	s := &counterState{round: 1}
	empty := Empty[*counterState, int, counterMsg, int](s)
	require.True(t, empty.IsEmpty())
	require.Equal(t, "Empty", empty.String())

	msgOut := Messages[*counterState, int, counterMsg, int](s, []Message[int, counterMsg]{{Recipient: Single(2), Body: counterMsg{round: 1}}})
	require.True(t, msgOut.IsMessages())
	msgs, ok := msgOut.IntoMessages()
	require.True(t, ok)
	require.Len(t, msgs, 1)
	require.Equal(t, "Messages(1)", msgOut.String())

	ooOut := OutOfOrder[*counterState, int, counterMsg, int](s, counterMsg{round: 5})
	require.True(t, ooOut.IsOutOfOrder())
	pending, ok := ooOut.IntoPending()
	require.True(t, ok)
	require.Equal(t, 5, pending.round)

	finalOut := Final[*counterState, int, counterMsg, int](42)
	require.True(t, finalOut.IsFinal())
	final, ok := finalOut.IntoFinal()
	require.True(t, ok)
	require.Equal(t, 42, final)
	_, hasState := finalOut.IntoState()
	require.False(t, hasState)
}

func TestAdvanceIfCompletedOnlyAdvancesWhenReady(t *testing.T) {
	s := &counterState{round: 1, started: true}
	_, advanced, err := AdvanceIfCompleted[*counterState, int, counterMsg, int](s)
	require.NoError(t, err)
	require.False(t, advanced)

	s2 := &counterState{round: 1}
	out, advanced, err := AdvanceIfCompleted[*counterState, int, counterMsg, int](s2)
	require.NoError(t, err)
	require.True(t, advanced)
	require.True(t, out.IsMessages())
}

func TestDriverStartAndDeliverReachesFinal(t *testing.T) {
	driver := NewDriver[*counterState, int, counterMsg, int](&counterState{round: 3})
	out, err := driver.Start()
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.False(t, driver.Done())

	_, err = driver.Deliver(counterMsg{round: 3})
	require.NoError(t, err)
	require.False(t, driver.Done())

	_, err = driver.Deliver(counterMsg{round: 3})
	require.NoError(t, err)
	require.True(t, driver.Done())
	require.Equal(t, 2, driver.Result())
}

func TestDriverBuffersOutOfOrderMessagesForRedelivery(t *testing.T) {
	driver := NewDriver[*counterState, int, counterMsg, int](&counterState{round: 1})
	_, err := driver.Start()
	require.NoError(t, err)

	// Arrives before this machine is on round 2; gets buffered rather than
	// rejected, and is retried (still mismatched) on every later Deliver.
	_, err = driver.Deliver(counterMsg{round: 2})
	require.NoError(t, err)
	require.False(t, driver.Done())

	_, err = driver.Deliver(counterMsg{round: 1})
	require.NoError(t, err)
	require.False(t, driver.Done())

	_, err = driver.Deliver(counterMsg{round: 1})
	require.NoError(t, err)
	require.True(t, driver.Done())
	require.Equal(t, 2, driver.Result())
}

func TestDriverDeliverAfterDoneIsNoop(t *testing.T) {
	driver := NewDriver[*counterState, int, counterMsg, int](&counterState{round: 0})
	_, err := driver.Start()
	require.NoError(t, err)
	_, err = driver.Deliver(counterMsg{round: 0})
	require.NoError(t, err)
	_, err = driver.Deliver(counterMsg{round: 0})
	require.NoError(t, err)
	require.True(t, driver.Done())

	out, err := driver.Deliver(counterMsg{round: 0})
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestRecipientConstructors(t *testing.T) {
	single := Single(7)
	require.Equal(t, RecipientSingle, single.Kind)
	require.Equal(t, 7, single.Single)

	multi := Multiple[int]()
	require.Equal(t, RecipientMultiple, multi.Kind)
}

func TestWrapPreservesRecipientAndMapsBody(t *testing.T) {
	inner := Message[int, counterMsg]{Recipient: Single(4), Body: counterMsg{round: 2}}
	wrapped := Wrap(inner, func(m counterMsg) string { return "round" })
	require.Equal(t, Single(4), wrapped.Recipient)
	require.Equal(t, "round", wrapped.Body)
}
