package retry

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

// BackoffPolicy is the deterministic retry curve:
//
//	delay(n) = min(base * 2^(n-1), cap) +- jitter
//
// where n is the retry count after incrementing and jitter is a fraction of
// the delay seeded from (scheduleID, retryCount). The same inputs always
// yield the same instant, which keeps tests and replayed cycles stable.
type BackoffPolicy struct {
	Base           time.Duration
	Cap            time.Duration
	JitterFraction float64
}

// Delay returns the hold before attempt retryCount of the schedule.
func (p BackoffPolicy) Delay(scheduleID uuid.UUID, retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	base := p.Base
	if base <= 0 {
		base = 4 * time.Hour
	}
	max := p.Cap
	if max <= 0 {
		max = 72 * time.Hour
	}

	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if delay > max {
		delay = max
	}

	return delay + p.jitter(scheduleID, retryCount, delay)
}

// NextRetryAt returns the absolute instant of the next attempt.
func (p BackoffPolicy) NextRetryAt(now time.Time, scheduleID uuid.UUID, retryCount int) time.Time {
	return now.Add(p.Delay(scheduleID, retryCount))
}

// jitter spreads retries of different schedules apart without introducing
// randomness: the offset is a hash of (scheduleID, retryCount) mapped onto
// [-fraction, +fraction] of the delay.
func (p BackoffPolicy) jitter(scheduleID uuid.UUID, retryCount int, delay time.Duration) time.Duration {
	fraction := p.JitterFraction
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	h := fnv.New64a()
	_, _ = h.Write(scheduleID[:])
	var countBytes [8]byte
	binary.BigEndian.PutUint64(countBytes[:], uint64(retryCount))
	_, _ = h.Write(countBytes[:])

	// Map the hash onto [-1, 1).
	unit := float64(int64(h.Sum64()))/float64(1<<63)
	return time.Duration(unit * fraction * float64(delay))
}

func (p BackoffPolicy) String() string {
	return fmt.Sprintf("backoff(base=%s cap=%s jitter=%.2f)", p.Base, p.Cap, p.JitterFraction)
}
