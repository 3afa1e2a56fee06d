// Package seqid generates the human-readable identifiers used across
// caseforge: tenant-scoped sequential ids like STORY-012 and parent-scoped
// composite ids like TC-US-4-003. Both generators are pure functions over
// the last known state; collision safety is the caller's job, backed by the
// store's unique composite-key constraint and a bounded retry loop.
package seqid

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAllocationAttempts bounds the candidate-id retry loop a caller runs
// when a generated id already exists under the same composite key.
const MaxAllocationAttempts = 100

// NextSequential returns the next id in a tenant-scoped sequence.
// The sequence number is parsed from lastID (zero when lastID is empty or
// carries no numeric suffix), incremented, and zero-padded to three digits.
// Sequences grow naturally past three digits: PROJ-999 is followed by
// PROJ-1000.
func NextSequential(prefix, lastID string) string {
	return fmt.Sprintf("%s-%03d", prefix, Sequence(lastID)+1)
}

// NextComposite returns the next child id scoped to a parent id, derived
// from the number of existing children: NextComposite("BUG", "PROJ-001", 41)
// yields "BUG-PROJ-001-042".
func NextComposite(childPrefix, parentID string, existingChildren int) string {
	return fmt.Sprintf("%s-%s-%03d", childPrefix, parentID, existingChildren+1)
}

// Sequence extracts the numeric suffix of an id, or 0 when the id is empty
// or its final segment is not a number.
func Sequence(id string) int {
	if id == "" {
		return 0
	}
	idx := strings.LastIndex(id, "-")
	if idx < 0 || idx == len(id)-1 {
		return 0
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
