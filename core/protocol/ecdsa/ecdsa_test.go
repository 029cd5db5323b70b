package ecdsa

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartDKGReportsHonestAbort(t *testing.T) {
	parties := []PartyID{1, 2, 3}
	worker := StartDKG(context.Background(), 1, parties, 2, ECDSA)
	defer worker.Close()

	select {
	case res := <-worker.Done():
		require.True(t, res.Aborted)
		require.Contains(t, res.AbortReason, "not wired")
	case <-time.After(time.Second):
		t.Fatal("worker did not report a result")
	}
}

func TestStartSignReportsHonestAbortForEdDSA(t *testing.T) {
	parties := []PartyID{1, 2, 3}
	worker := StartSign(context.Background(), 1, parties, [32]byte{}, EdDSA)
	defer worker.Close()

	select {
	case res := <-worker.Done():
		require.True(t, res.Aborted)
		require.Contains(t, res.AbortReason, "eddsa")
	case <-time.After(time.Second):
		t.Fatal("worker did not report a result")
	}
}

func TestStartDKGAbortsWhenSelfNotInMembership(t *testing.T) {
	parties := []PartyID{2, 3}
	worker := StartDKG(context.Background(), 1, parties, 2, ECDSA)
	defer worker.Close()

	res := <-worker.Done()
	require.True(t, res.Aborted)
	require.Contains(t, res.AbortReason, "not found in cluster membership")
}

func TestStateDrainsAbortAsFinalOutput(t *testing.T) {
	parties := []PartyID{1, 2}
	worker := StartDKG(context.Background(), 1, parties, 1, ECDSA)
	defer worker.Close()

	// Give the worker goroutine a chance to publish its result before the
	// state machine polls, mirroring how the VM's router polls on its own
	// schedule rather than synchronously with the worker.
	time.Sleep(10 * time.Millisecond)

	st := NewFromWorker(1, parties, worker)
	require.True(t, st.IsCompleted())

	out, err := st.TryNext()
	require.NoError(t, err)
	final, ok := out.IntoFinal()
	require.True(t, ok)
	require.True(t, final.Aborted)
}
