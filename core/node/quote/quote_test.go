package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLifecycleProducesReceiptWithMatchingNonce(t *testing.T) {
	q := NewQuote("fingerprint-1", 100, time.Hour)
	require.False(t, q.Expired(time.Now()))

	quoted := q.Quoted([]byte("leader-sig"))
	paid := quoted.Paid("0xdeadbeef")
	validated := paid.Validated("user-1")
	invoked := validated.Invoked()

	receipt := IssueReceipt(validated)
	require.Equal(t, q.Nonce, receipt.Nonce)
	require.Equal(t, q.ComputeID, receipt.ComputeID)
	require.Equal(t, "user-1", receipt.UserID)
	require.Equal(t, "0xdeadbeef", receipt.TxHash)
	require.Equal(t, q.ComputeID, invoked.ComputeID)
}

func TestExpiredDetectsPastTTL(t *testing.T) {
	q := NewQuote("fingerprint-2", 1, time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	require.True(t, q.Expired(time.Now()))
}

func TestNewQuoteNoncesAreUnique(t *testing.T) {
	a := NewQuote("f", 1, time.Hour)
	b := NewQuote("f", 1, time.Hour)
	require.NotEqual(t, a.Nonce, b.Nonce)
}
