package preprocessing

import (
	"fmt"
	"sync"
)

// Watermarks is one ElementKind's offset state, named and ordered
// exactly as original_source/node/src/stateful/preprocessing_scheduler.rs's
// test helper `make_offsets` and its PreprocessingOffsets struct lay
// them out. Target is the desired high-water mark a scheduler is
// currently chasing; Latest is the highest batch scheduled so far;
// Committed is the highest batch actually persisted and usable by an
// executor; NextBatchID is a monotone counter handed out to the next
// generation round; DeleteCandidateOffset/DeletedOffset track how far a
// garbage-collection pass may reclaim old batches. The ordering
// Deleted <= DeleteCandidate <= Committed <= Latest is kept by the
// mutations: Commit, MarkDeleteCandidate and MarkDeleted each refuse to
// pass the watermark above them. Latest and Target are not checked
// against each other: SetTargetOffset stores any value, and
// AdvanceLatestOffset adds a whole batch, so Latest can end above Target.
type Watermarks struct {
	Target                uint64
	Latest                uint64
	Committed             uint64
	NextBatchID           uint64
	DeleteCandidateOffset uint64
	DeletedOffset         uint64
}

// Offsets tracks Watermarks per ElementKind, guarded by a mutex since
// the scheduler goroutine (advancing Latest/Target) and the executor
// (advancing Committed as it consumes batches) touch the same kind's
// entry concurrently.
type Offsets struct {
	mu     sync.Mutex
	values map[ElementKind]Watermarks
}

// NewOffsets builds an Offsets tracker starting at zero for every known
// ElementKind.
func NewOffsets() *Offsets {
	o := &Offsets{values: map[ElementKind]Watermarks{}}
	for _, k := range Kinds() {
		o.values[k] = Watermarks{}
	}
	return o
}

// Snapshot returns kind's current Watermarks.
func (o *Offsets) Snapshot(kind ElementKind) Watermarks {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.values[kind]
}

// SetTargetOffset raises kind's Target high-water mark, the move
// try_trigger_generation makes when Committed has caught up to within
// generation_threshold of the current Target.
func (o *Offsets) SetTargetOffset(kind ElementKind, target uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.values[kind]
	w.Target = target
	o.values[kind] = w
}

// AdvanceLatestOffset records that a batch of batchSize elements was
// generated under batchID, advancing Latest and handing out the next
// NextBatchID. Rejects a batchID that doesn't match the expected next
// one, the same duplicate-advancement guard advance_latest_offset
// provides in the system this is modeled on.
func (o *Offsets) AdvanceLatestOffset(kind ElementKind, batchSize, batchID uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.values[kind]
	if batchID != w.NextBatchID {
		return fmt.Errorf("preprocessing: %s batch %d is not the expected next batch %d", kind, batchID, w.NextBatchID)
	}
	w.Latest += batchSize
	w.NextBatchID++
	o.values[kind] = w
	return nil
}

// Commit advances kind's Committed watermark by n, the count of
// elements an executor has actually drawn and used, failing if that
// would push Committed past Latest.
func (o *Offsets) Commit(kind ElementKind, n uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.values[kind]
	if w.Committed+n > w.Latest {
		return fmt.Errorf("preprocessing: cannot commit %d %s elements, only %d remain", n, kind, w.Latest-w.Committed)
	}
	w.Committed += n
	o.values[kind] = w
	return nil
}

// MarkDeleteCandidate advances kind's DeleteCandidateOffset, bounded by
// Committed: a batch isn't a deletion candidate until every element in
// it has actually been committed for use.
func (o *Offsets) MarkDeleteCandidate(kind ElementKind, offset uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.values[kind]
	if offset > w.Committed {
		return fmt.Errorf("preprocessing: delete-candidate offset %d exceeds committed %d for %s", offset, w.Committed, kind)
	}
	if offset > w.DeleteCandidateOffset {
		w.DeleteCandidateOffset = offset
	}
	o.values[kind] = w
	return nil
}

// MarkDeleted advances kind's DeletedOffset, bounded by
// DeleteCandidateOffset: storage may only reclaim batches a prior
// MarkDeleteCandidate call already cleared.
func (o *Offsets) MarkDeleted(kind ElementKind, offset uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := o.values[kind]
	if offset > w.DeleteCandidateOffset {
		return fmt.Errorf("preprocessing: deleted offset %d exceeds delete-candidate %d for %s", offset, w.DeleteCandidateOffset, kind)
	}
	if offset > w.DeletedOffset {
		w.DeletedOffset = offset
	}
	o.values[kind] = w
	return nil
}

// Remaining reports how many scheduled-but-not-yet-committed elements
// of kind exist, the `total` quantity try_trigger_generation compares
// against generation_threshold.
func (o *Offsets) Remaining(kind ElementKind) uint64 {
	w := o.Snapshot(kind)
	return saturatingSub(w.Latest, w.Committed)
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
