package preprocessing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// scheduleDelays is the backoff sequence a scheduler retries generation at
// after a round fails to complete, repeating the final delay indefinitely
// once exhausted. Matches SCHEDULE_DELAYS in
// original_source/node/src/stateful/preprocessing_scheduler.rs exactly.
var scheduleDelays = []time.Duration{500 * time.Millisecond, time.Second, 5 * time.Second, 10 * time.Second}

// generationTimeout bounds how long a single cross-party generation round
// is allowed to run before being abandoned and retried, matching
// GENERATION_TIMEOUT in the same file.
const generationTimeout = 60 * time.Second

// Generator drives one cross-party generation round for kind, producing
// batchSize elements tagged under batchID and correlated by
// generationID, returning once every party has reported success or the
// context is cancelled/timed out. A real implementation runs the
// relevant protocol (randomshare for random elements, a batch of
// compare.New instances for digits, and so on) across the whole
// cluster.
type Generator interface {
	Generate(ctx context.Context, kind ElementKind, generationID uuid.UUID, batchID, batchSize uint64) error
}

// ProtocolConfig mirrors the Rust PreprocessingProtocolConfig fields
// that drive try_trigger_generation's target-offset-jump formula, one
// instance per ElementKind.
type ProtocolConfig struct {
	BatchSize           uint64
	GenerationThreshold uint64
	TargetOffsetJump    uint64
}

// Scheduler keeps every ElementKind's offsets topped up ahead of executor
// demand. One goroutine runs per kind, the same one-spawn-per-enum-variant
// shape PreprocessingScheduler::spawn uses, coalescing multiple "elements
// were just consumed" notifications the way a Rust watch::channel does:
// only the latest notification matters, so repeated rapid consumption
// doesn't queue up redundant wakeups.
type Scheduler struct {
	offsets   *Offsets
	generator Generator
	configs   map[ElementKind]ProtocolConfig
	wake      map[ElementKind]chan struct{}
	log       *logrus.Entry
}

// NewScheduler builds a Scheduler with one wake channel per tracked kind.
func NewScheduler(offsets *Offsets, generator Generator, configs map[ElementKind]ProtocolConfig, log *logrus.Entry) *Scheduler {
	s := &Scheduler{
		offsets:   offsets,
		generator: generator,
		configs:   configs,
		wake:      map[ElementKind]chan struct{}{},
		log:       log,
	}
	for _, k := range Kinds() {
		s.wake[k] = make(chan struct{}, 1)
	}
	return s
}

// NotifyUsed signals that elements of kind were just consumed, coalescing
// with any pending notification that hasn't been picked up yet.
func (s *Scheduler) NotifyUsed(kind ElementKind) {
	ch, ok := s.wake[kind]
	if !ok {
		s.log.WithField("element", kind).Error("no scheduler registered for element kind")
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run starts one goroutine per ElementKind and blocks until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{}, len(Kinds()))
	for _, kind := range Kinds() {
		go func(kind ElementKind) {
			s.runOne(ctx, kind)
			done <- struct{}{}
		}(kind)
	}
	for range Kinds() {
		<-done
	}
}

func (s *Scheduler) runOne(ctx context.Context, kind ElementKind) {
	log := s.log.WithField("element", kind)
	log.Info("starting preprocessing scheduler")
	log.Info("checking if we need to trigger preprocessing")
	s.loopTryTriggerGeneration(ctx, kind)

	for {
		log.Info("waiting for more preprocessing to be needed")
		select {
		case <-ctx.Done():
			return
		case <-s.wake[kind]:
			log.Info("received notification that elements were used, checking")
			s.loopTryTriggerGeneration(ctx, kind)
		}
	}
}

// triggerOutcome mirrors the Rust PreprocessingResult enum
// try_trigger_generation returns: either the pool already meets target,
// or a generation round was kicked off under batchID.
type triggerOutcome struct {
	generated bool
	batchID   uint64
}

// loopTryTriggerGeneration repeatedly calls tryTriggerGeneration until
// the pool is full, backing off through scheduleDelays on any failure
// and resetting the backoff once a round's offset advance succeeds —
// the exact control flow of loop_try_trigger_generation.
func (s *Scheduler) loopTryTriggerGeneration(ctx context.Context, kind ElementKind) {
	log := s.log.WithField("element", kind)
	delayIdx := 0
	for {
		if ctx.Err() != nil {
			return
		}
		delay := scheduleDelays[delayIdx]
		if delayIdx < len(scheduleDelays)-1 {
			delayIdx++
		}

		outcome, err := s.tryTriggerGeneration(ctx, kind)
		if err != nil {
			log.WithError(err).Warn("failed to trigger generation, sleeping before retry")
			sleepOrDone(ctx, delay)
			continue
		}
		if !outcome.generated {
			return
		}

		cfg := s.configs[kind]
		if err := s.offsets.AdvanceLatestOffset(kind, cfg.BatchSize, outcome.batchID); err != nil {
			log.WithError(err).Warn("failed to advance latest offset, sleeping before retry")
			sleepOrDone(ctx, delay)
			continue
		}
		log.WithField("batch_id", outcome.batchID).Info("offset advanced successfully")
		delayIdx = 0
	}
}

// tryTriggerGeneration implements the Rust function of the same name
// verbatim: bump the target offset when Committed is within
// generation_threshold of it, then kick off one generation round if
// Latest hasn't caught up to Target yet.
func (s *Scheduler) tryTriggerGeneration(ctx context.Context, kind ElementKind) (triggerOutcome, error) {
	log := s.log.WithField("element", kind)
	cfg := s.configs[kind]
	w := s.offsets.Snapshot(kind)

	total := saturatingSub(w.Latest, w.Committed)
	targetOffset := w.Target
	remainingToTarget := saturatingSub(targetOffset, w.Committed)

	log.WithFields(logrus.Fields{
		"total": total, "target": w.Target, "committed": w.Committed, "latest": w.Latest,
	}).Info("checking preprocessing offsets")

	if remainingToTarget < cfg.GenerationThreshold {
		// Move the target offset by generation_threshold + target_offset_jump
		// past Committed, ensuring the first run moves it a single time
		// rather than chasing the threshold by jumping repeatedly.
		targetOffset = w.Committed + cfg.GenerationThreshold + cfg.TargetOffsetJump
		log.WithField("target", targetOffset).Info("remaining elements below threshold, bumping target offset")
		s.offsets.SetTargetOffset(kind, targetOffset)
	}

	if w.Latest >= targetOffset {
		log.Info("not triggering preprocessing, pool is full")
		return triggerOutcome{}, nil
	}

	log.WithField("target", targetOffset).Info("triggering preprocessing")
	genCtx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()
	if err := s.generator.Generate(genCtx, kind, uuid.New(), w.NextBatchID, cfg.BatchSize); err != nil {
		return triggerOutcome{}, err
	}
	return triggerOutcome{generated: true, batchID: w.NextBatchID}, nil
}

func sleepOrDone(ctx context.Context, delay time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
