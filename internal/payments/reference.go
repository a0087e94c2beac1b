package payments

import (
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultReferencePrefix is used when a caller supplies no prefix.
	DefaultReferencePrefix = "r2b"

	maxReferenceLen    = 100
	maxPrefixLen       = 16
	referenceSuffixLen = 13

	// DefaultReferenceLedgerTTL bounds how long a claimed reference is held
	// in memory.
	DefaultReferenceLedgerTTL = 24 * time.Hour
)

// PaymentReference joins a local order to the processor transaction. It is
// never reused across checkout attempts.
type PaymentReference string

func (r PaymentReference) String() string { return string(r) }

// Valid reports whether the reference is non-empty, at most 100 characters,
// and drawn from the alphabet Paystack accepts: letters, digits, '-', '.',
// '=' and '_'. Every such value is also safe in a query string.
func (r PaymentReference) Valid() bool {
	if len(r) == 0 || len(r) > maxReferenceLen {
		return false
	}
	for _, c := range string(r) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '=', c == '_':
		default:
			return false
		}
	}
	return true
}

var lastReferenceMillis atomic.Int64

// GenerateReference builds prefix_millis_suffix. The millisecond segment never
// moves backwards within a process; uniqueness across processes comes from 64
// random bits rendered in base36.
func GenerateReference(prefix string) PaymentReference {
	millis := nextReferenceMillis(time.Now().UnixMilli())
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
	if pad := referenceSuffixLen - len(suffix); pad > 0 {
		suffix = strings.Repeat("0", pad) + suffix
	}
	return PaymentReference(sanitizePrefix(prefix) + "_" + strconv.FormatInt(millis, 10) + "_" + suffix)
}

func nextReferenceMillis(now int64) int64 {
	for {
		last := lastReferenceMillis.Load()
		next := now
		if next < last {
			next = last
		}
		if lastReferenceMillis.CompareAndSwap(last, next) {
			return next
		}
	}
}

func sanitizePrefix(prefix string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(strings.TrimSpace(prefix)) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
		if b.Len() == maxPrefixLen {
			break
		}
	}
	if b.Len() == 0 {
		return DefaultReferencePrefix
	}
	return b.String()
}

// ReferenceLedger remembers references this process has already sent to the
// processor. The orders table's unique constraint covers other processes.
type ReferenceLedger struct {
	seen      sync.Map
	ttl       time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
}

// NewReferenceLedger keeps claims for ttl, or DefaultReferenceLedgerTTL when
// ttl is not positive.
func NewReferenceLedger(ttl time.Duration) *ReferenceLedger {
	if ttl <= 0 {
		ttl = DefaultReferenceLedgerTTL
	}
	return &ReferenceLedger{ttl: ttl, now: time.Now}
}

// Claim records ref and reports whether it was unused.
func (l *ReferenceLedger) Claim(ref PaymentReference) bool {
	now := l.now()
	l.sweep(now)
	_, loaded := l.seen.LoadOrStore(ref, now)
	return !loaded
}

// Seen reports whether ref was claimed already.
func (l *ReferenceLedger) Seen(ref PaymentReference) bool {
	_, ok := l.seen.Load(ref)
	return ok
}

func (l *ReferenceLedger) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(l.ttl) || !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-l.ttl)
	l.seen.Range(func(key, value any) bool {
		if at, ok := value.(time.Time); ok && at.Before(cutoff) {
			l.seen.Delete(key)
		}
		return true
	})
}
