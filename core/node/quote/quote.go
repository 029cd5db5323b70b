// Package quote implements the paid-operation lifecycle: a client request
// is quoted, paid for, and receipted before a node will act on it. The
// phantom-type pattern here realizes Initial -> Quoted -> Paid -> Validated
// -> Invoked as a sequence of moves, each taking the prior stage by value
// and returning a value typed with the next stage. The compiler does not
// reject an out-of-order call: in a method declaration such as
// `func (q Quote[Initial]) Quoted(...)` the bracketed name declares a
// fresh type parameter, so every transition method can be called on a
// Quote of any stage. IssueReceipt, a plain function taking
// Quote[Validated], is the one step whose input stage is type-checked.
package quote

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage markers. These types carry no data; they exist only to
// parameterize Quote and name the stage each transition returns.
type (
	Initial   struct{}
	Quoted    struct{}
	Paid      struct{}
	Validated struct{}
	Invoked   struct{}
)

// Nonce is a single-use identifier bound to a receipt, preventing replay.
type Nonce string

func newNonce() Nonce {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return Nonce(hex.EncodeToString(b[:]))
}

// Quote is a paid-operation record at stage S. NewQuote returns a
// Quote[Initial] and each transition method returns the next stage; the
// type parameter records which transition produced a value. Because the
// data fields are exported, a keyed composite literal of any stage can
// also be written outside this package.
type Quote[S any] struct {
	ComputeID   uuid.UUID
	Fingerprint string
	Nonce       Nonce
	Fees        uint64
	ExpiresAt   time.Time

	txHash    string
	userID    string
	signature []byte
}

// NewQuote starts a fresh lifecycle for request, fingerprinted by the
// caller (typically a hash of the canonicalized request body) with a
// default 24h expiration matching SPEC_FULL.md's quote_ttl default.
func NewQuote(fingerprint string, fees uint64, ttl time.Duration) Quote[Initial] {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return Quote[Initial]{
		ComputeID:   uuid.New(),
		Fingerprint: fingerprint,
		Nonce:       newNonce(),
		Fees:        fees,
		ExpiresAt:   time.Now().Add(ttl),
	}
}

// Expired reports whether the quote has aged out regardless of stage.
func (q Quote[S]) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// Quoted signs the quote with the leader's signature, returning it as a
// Quote[Quoted].
func (q Quote[Initial]) Quoted(signature []byte) Quote[Quoted] {
	return Quote[Quoted]{
		ComputeID: q.ComputeID, Fingerprint: q.Fingerprint, Nonce: q.Nonce,
		Fees: q.Fees, ExpiresAt: q.ExpiresAt, signature: signature,
	}
}

// Paid attaches proof of payment, either a chain transaction hash or an
// empty string when payment came from a per-user balance deduction
// instead (node/storage records which in its own ledger).
func (q Quote[Quoted]) Paid(txHash string) Quote[Paid] {
	return Quote[Paid]{
		ComputeID: q.ComputeID, Fingerprint: q.Fingerprint, Nonce: q.Nonce,
		Fees: q.Fees, ExpiresAt: q.ExpiresAt, signature: q.signature, txHash: txHash,
	}
}

// Validated records the user-id the payment was authenticated against,
// after the receipt's nonce has been checked single-use in storage.
func (q Quote[Paid]) Validated(userID string) Quote[Validated] {
	return Quote[Validated]{
		ComputeID: q.ComputeID, Fingerprint: q.Fingerprint, Nonce: q.Nonce,
		Fees: q.Fees, ExpiresAt: q.ExpiresAt, signature: q.signature,
		txHash: q.txHash, userID: userID,
	}
}

// Invoked marks the receipt as consumed by exactly one compute
// invocation; SPEC_FULL.md's nonce-replay invariant means this method
// should only ever be reachable once per Quote.Nonce in practice, which
// node/storage enforces by recording the nonce at Validated time.
func (q Quote[Validated]) Invoked() Quote[Invoked] {
	return Quote[Invoked]{
		ComputeID: q.ComputeID, Fingerprint: q.Fingerprint, Nonce: q.Nonce,
		Fees: q.Fees, ExpiresAt: q.ExpiresAt, signature: q.signature,
		txHash: q.txHash, userID: q.userID,
	}
}

// Receipt is the leader-signed evidence handed back to a client once a
// quote reaches Validated: a signed quote stapled to proof of payment.
type Receipt struct {
	ComputeID uuid.UUID
	Nonce     Nonce
	UserID    string
	TxHash    string
	Signature []byte
}

// IssueReceipt extracts the client-facing Receipt from a Validated quote.
func IssueReceipt(q Quote[Validated]) Receipt {
	return Receipt{
		ComputeID: q.ComputeID, Nonce: q.Nonce, UserID: q.userID,
		TxHash: q.txHash, Signature: q.signature,
	}
}

func (r Receipt) String() string {
	return fmt.Sprintf("receipt{compute=%s user=%s nonce=%s}", r.ComputeID, r.UserID, r.Nonce)
}
