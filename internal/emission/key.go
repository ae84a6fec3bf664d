package emission

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey derives the charge deduplication key for one attempt of one
// billing cycle. The key is a pure function of (schedule, cycle date,
// attempt): a coordinator that crashes after submitting and restarts the
// same attempt recomputes the same key and finds the existing intent instead
// of charging twice, while a genuine retry (attempt incremented) produces a
// fresh key and a fresh charge.
func IdempotencyKey(scheduleID uuid.UUID, cycleDate time.Time, attempt int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", scheduleID, cycleDate.UTC().Format("2006-01-02"), attempt)))
	return hex.EncodeToString(sum[:])
}
