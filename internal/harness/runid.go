package harness

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRunID produces a sortable, collision-free run identifier. The timestamp
// prefix keeps run directories listable in chronological order; the UUID
// suffix disambiguates runs started within the same second.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102-150405"), uuid.New().String()[:8])
}
