package preprocessing

import (
	"math/big"
	"sync"

	"github.com/NillionNetwork/nilvm-sub002/core/algebra"
	"github.com/NillionNetwork/nilvm-sub002/core/errkind"
	"github.com/NillionNetwork/nilvm-sub002/core/protocol/compare"
)

// BatchStore persists generated preprocessing material so it survives a
// node restart. An in-memory implementation is provided here for tests
// and single-process deployments; SPEC_FULL.md §6 names sqlite-backed and
// blob-backed implementations of the same interface for production
// deployments, following the repository-interface-plus-multiple-backends
// shape the rest of the node's storage layer uses.
type BatchStore interface {
	PutRandomElements(batch []algebra.Element) error
	TakeRandomElement() (algebra.Element, bool)
	PutCompareDigits(batch []compare.QuaternaryDigit) error
	TakeCompareDigit() (compare.QuaternaryDigit, bool)
	PutTruncationMasks(batch []truncationMaskPair) error
	TakeTruncationMask() (truncationMaskPair, bool)
	PutReciprocals(divisor *big.Int, batch []algebra.Element) error
	TakeReciprocal(divisor *big.Int) (algebra.Element, bool)
}

type truncationMaskPair struct {
	Share        algebra.Element
	ShiftedShare algebra.Element
}

// MemoryStore is an in-process BatchStore backed by plain slices, suitable
// for tests and the single-node bootstrap path.
type MemoryStore struct {
	mu          sync.Mutex
	randoms     []algebra.Element
	digits      []compare.QuaternaryDigit
	masks       []truncationMaskPair
	reciprocals map[string][]algebra.Element
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reciprocals: map[string][]algebra.Element{}}
}

func (s *MemoryStore) PutRandomElements(batch []algebra.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.randoms = append(s.randoms, batch...)
	return nil
}

func (s *MemoryStore) TakeRandomElement() (algebra.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.randoms) == 0 {
		return algebra.Element{}, false
	}
	v := s.randoms[0]
	s.randoms = s.randoms[1:]
	return v, true
}

func (s *MemoryStore) PutCompareDigits(batch []compare.QuaternaryDigit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digits = append(s.digits, batch...)
	return nil
}

func (s *MemoryStore) TakeCompareDigit() (compare.QuaternaryDigit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.digits) == 0 {
		return compare.QuaternaryDigit{}, false
	}
	v := s.digits[0]
	s.digits = s.digits[1:]
	return v, true
}

func (s *MemoryStore) PutTruncationMasks(batch []truncationMaskPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masks = append(s.masks, batch...)
	return nil
}

func (s *MemoryStore) TakeTruncationMask() (truncationMaskPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.masks) == 0 {
		return truncationMaskPair{}, false
	}
	v := s.masks[0]
	s.masks = s.masks[1:]
	return v, true
}

func (s *MemoryStore) PutReciprocals(divisor *big.Int, batch []algebra.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := divisor.String()
	s.reciprocals[key] = append(s.reciprocals[key], batch...)
	return nil
}

func (s *MemoryStore) TakeReciprocal(divisor *big.Int) (algebra.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := divisor.String()
	batch := s.reciprocals[key]
	if len(batch) == 0 {
		return algebra.Element{}, false
	}
	v := batch[0]
	s.reciprocals[key] = batch[1:]
	return v, true
}

// Pool is the executor-facing preprocessing.Preprocessing implementation
// (see core/exec.Preprocessing): it draws material from a BatchStore and
// reports a ResourceExhaustion error the moment the store runs dry rather
// than inventing a value locally. A value one party makes up on the spot
// is not a secret share any other party agrees on, so handing one to a
// consuming protocol would silently reconstruct garbage instead of
// failing loudly; an empty pool is the scheduler falling behind demand,
// which callers should treat as a retryable resource limit, the same way
// a hit max_protocol_messages_count budget is reported.
type Pool struct {
	prime algebra.SafePrime
	store BatchStore
}

// NewPool builds a Pool drawing from store.
func NewPool(prime algebra.SafePrime, store BatchStore) *Pool {
	return &Pool{prime: prime, store: store}
}

func (p *Pool) RandomElement() (algebra.Element, error) {
	v, ok := p.store.TakeRandomElement()
	if !ok {
		return algebra.Element{}, errkind.ResourceExhaustedf("preprocessing pool exhausted: no random elements available")
	}
	return v, nil
}

func (p *Pool) RandomNonzeroElement() (algebra.Element, error) {
	for {
		v, err := p.RandomElement()
		if err != nil {
			return algebra.Element{}, err
		}
		if !v.IsZero() {
			return v, nil
		}
	}
}

func (p *Pool) TruncationMask(bits uint) (algebra.Element, algebra.Element, error) {
	v, ok := p.store.TakeTruncationMask()
	if !ok {
		return algebra.Element{}, algebra.Element{}, errkind.ResourceExhaustedf("preprocessing pool exhausted: no truncation masks available")
	}
	return v.Share, v.ShiftedShare, nil
}

func (p *Pool) Reciprocal(divisor *big.Int) (algebra.Element, error) {
	v, ok := p.store.TakeReciprocal(divisor)
	if !ok {
		return algebra.Element{}, errkind.ResourceExhaustedf("preprocessing pool exhausted: no reciprocals available for divisor %s", divisor)
	}
	return v, nil
}
