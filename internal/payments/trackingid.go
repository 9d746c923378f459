package payments

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrackingIDPattern matches ids produced by NewTrackingID.
var TrackingIDPattern = regexp.MustCompile(`^PRCL-\d{8}-[0-9A-F]{6}$`)

// NewTrackingID returns a human-facing id of the form PRCL-YYYYMMDD-XXXXXX.
// The date is taken from now in UTC; the suffix is 3 random bytes in upper hex.
func NewTrackingID(now time.Time) string {
	u := uuid.New()
	return "PRCL-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(u[:3]))
}
