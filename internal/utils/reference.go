package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateReference builds PREFIX-YYYYMMDD-HHMMSS-mmm-<32 hex> in UTC. The
// suffix is a random UUID so references stay unique across instances.
func GenerateReference(prefix string, now time.Time) string {
	now = now.UTC()

	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")

	return fmt.Sprintf("%s-%s-%03d-%s", prefix, datePart, millis, suffix)
}
