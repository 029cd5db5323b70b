package preprocessing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeGenerator records every Generate call and optionally fails a
// configured number of times before succeeding, mirroring the rstest
// cases in preprocessing_scheduler.rs (success, wait-then-succeed,
// failure, success-after-failure).
type fakeGenerator struct {
	failures int
	calls    []uint64
}

func (g *fakeGenerator) Generate(_ context.Context, _ ElementKind, _ uuid.UUID, batchID, _ uint64) error {
	g.calls = append(g.calls, batchID)
	if g.failures > 0 {
		g.failures--
		return errGeneration
	}
	return nil
}

var errGeneration = errors.New("generation failed")

func testConfig() map[ElementKind]ProtocolConfig {
	return map[ElementKind]ProtocolConfig{
		ElementCompare: {BatchSize: 2, GenerationThreshold: 10, TargetOffsetJump: 5},
	}
}

func newTestScheduler(t *testing.T, gen Generator) (*Scheduler, *Offsets) {
	t.Helper()
	offsets := NewOffsets()
	log := logrus.NewEntry(logrus.New())
	return NewScheduler(offsets, gen, testConfig(), log), offsets
}

func TestTryTriggerGenerationBumpsTargetOffsetWhenBelowThreshold(t *testing.T) {
	gen := &fakeGenerator{}
	s, offsets := newTestScheduler(t, gen)

	// committed=1, latest=1: remaining_to_target (target 0 - committed 1 -> saturates to 0)
	// is below generation_threshold (10), so target bumps to committed(1) + 10 + 5 = 16.
	w := offsets.Snapshot(ElementCompare)
	w.Committed = 1
	w.Latest = 1
	offsets.values[ElementCompare] = w

	outcome, err := s.tryTriggerGeneration(context.Background(), ElementCompare)
	require.NoError(t, err)
	require.True(t, outcome.generated)
	require.Equal(t, uint64(0), outcome.batchID)

	snap := offsets.Snapshot(ElementCompare)
	require.Equal(t, uint64(16), snap.Target)
	require.Len(t, gen.calls, 1)
}

func TestTryTriggerGenerationReportsPoolFullWhenLatestMeetsTarget(t *testing.T) {
	gen := &fakeGenerator{}
	s, offsets := newTestScheduler(t, gen)

	w := offsets.Snapshot(ElementCompare)
	w.Target = 10
	w.Latest = 10
	w.Committed = 0
	offsets.values[ElementCompare] = w

	outcome, err := s.tryTriggerGeneration(context.Background(), ElementCompare)
	require.NoError(t, err)
	require.False(t, outcome.generated)
	require.Empty(t, gen.calls)
}

func TestLoopTryTriggerGenerationRetriesOnFailureThenAdvances(t *testing.T) {
	original := scheduleDelays
	scheduleDelays = []time.Duration{time.Millisecond}
	defer func() { scheduleDelays = original }()

	gen := &fakeGenerator{failures: 1}
	s, offsets := newTestScheduler(t, gen)

	w := offsets.Snapshot(ElementCompare)
	w.Target = 10
	offsets.values[ElementCompare] = w

	s.loopTryTriggerGeneration(context.Background(), ElementCompare)

	// One failed attempt, then five successful batches of 2 to bring
	// Latest from 0 up to Target (10), then the loop observes the pool
	// is full and stops without generating again.
	require.Len(t, gen.calls, 6)
	snap := offsets.Snapshot(ElementCompare)
	require.Equal(t, uint64(10), snap.Latest)
	require.Equal(t, uint64(5), snap.NextBatchID)
}

func TestAdvanceLatestOffsetRejectsWrongBatchID(t *testing.T) {
	offsets := NewOffsets()
	err := offsets.AdvanceLatestOffset(ElementCompare, 2, 5)
	require.Error(t, err)

	require.NoError(t, offsets.AdvanceLatestOffset(ElementCompare, 2, 0))
	snap := offsets.Snapshot(ElementCompare)
	require.Equal(t, uint64(2), snap.Latest)
	require.Equal(t, uint64(1), snap.NextBatchID)
}

func TestCommitCannotExceedLatest(t *testing.T) {
	offsets := NewOffsets()
	require.NoError(t, offsets.AdvanceLatestOffset(ElementCompare, 2, 0))
	require.NoError(t, offsets.Commit(ElementCompare, 2))
	require.Error(t, offsets.Commit(ElementCompare, 1))
}
