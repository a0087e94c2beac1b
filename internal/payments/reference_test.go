package payments

import (
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referencePattern = regexp.MustCompile(`^[a-z0-9-]+_[0-9]+_[0-9a-z]{13}$`)

func TestGenerateReferenceFormat(t *testing.T) {
	ref := GenerateReference("r2b")
	assert.True(t, referencePattern.MatchString(ref.String()), ref)
	assert.True(t, strings.HasPrefix(ref.String(), "r2b_"))
	assert.True(t, ref.Valid())
}

func TestGenerateReferenceSanitizesPrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateReference("").String(), DefaultReferencePrefix+"_"))
	assert.True(t, strings.HasPrefix(GenerateReference("  Shop Front!").String(), "shopfront_"))
	assert.True(t, strings.HasPrefix(GenerateReference("?&=").String(), DefaultReferencePrefix+"_"))
	long := GenerateReference(strings.Repeat("a", 80))
	assert.True(t, strings.HasPrefix(long.String(), strings.Repeat("a", maxPrefixLen)+"_"))
}

func TestGenerateReferenceUniqueUnderConcurrency(t *testing.T) {
	const workers = 8
	const perWorker = 100000 / workers

	var mu sync.Mutex
	seen := make(map[PaymentReference]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]PaymentReference, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, GenerateReference("r2b"))
			}
			mu.Lock()
			for _, ref := range local {
				seen[ref] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNextReferenceMillisNeverGoesBackwards(t *testing.T) {
	saved := lastReferenceMillis.Load()
	t.Cleanup(func() { lastReferenceMillis.Store(saved) })

	ahead := time.Now().Add(time.Hour).UnixMilli()
	require.Equal(t, ahead, nextReferenceMillis(ahead))
	assert.Equal(t, ahead, nextReferenceMillis(ahead-5000))
}

func TestPaymentReferenceValid(t *testing.T) {
	cases := map[string]bool{
		"r2b_1":                   true,
		"r2b_1700000000000_abc12": true,
		"A.b=c-d_e":               true,
		"":                        false,
		"has space":               false,
		"amp&ersand":              false,
		"slash/":                  false,
		strings.Repeat("x", 100):  true,
		strings.Repeat("x", 101):  false,
	}
	for input, want := range cases {
		assert.Equal(t, want, PaymentReference(input).Valid(), input)
	}
}

func TestReferenceLedgerClaim(t *testing.T) {
	ledger := NewReferenceLedger(0)
	assert.True(t, ledger.Claim("r2b_1"))
	assert.False(t, ledger.Claim("r2b_1"))
	assert.True(t, ledger.Seen("r2b_1"))
	assert.False(t, ledger.Seen("r2b_2"))
}

func TestReferenceLedgerForgetsAfterTTL(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewReferenceLedger(time.Hour)
	ledger.now = func() time.Time { return now }

	require.True(t, ledger.Claim("r2b_old"))
	now = now.Add(2 * time.Hour)
	require.True(t, ledger.Claim("r2b_new"))

	assert.False(t, ledger.Seen("r2b_old"))
	assert.True(t, ledger.Seen("r2b_new"))
}

func TestReferenceLedgerDefaultTTLBoundsMemory(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewReferenceLedger(0)
	ledger.now = func() time.Time { return now }
	require.Equal(t, DefaultReferenceLedgerTTL, ledger.ttl)

	require.True(t, ledger.Claim("r2b_day_one"))
	now = now.Add(DefaultReferenceLedgerTTL + time.Minute)
	require.True(t, ledger.Claim("r2b_day_two"))

	assert.False(t, ledger.Seen("r2b_day_one"))
}
