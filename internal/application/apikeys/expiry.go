package apikeyservice

import (
	"regexp"
	"strconv"
	"time"

	"github.com/tuncanbit/ledger/internal/domain"
)

var expiryPattern = regexp.MustCompile(`^(\d+)([HDMY])$`)

// maxExpiryValue keeps the computed instant well inside time.Time's range.
const maxExpiryValue = 10000

// ParseExpiry turns an expiry such as "1H", "7D", "3M" or "1Y" into an
// absolute instant relative to now. Months and years follow the calendar.
func ParseExpiry(expiry string, now time.Time) (time.Time, error) {
	m := expiryPattern.FindStringSubmatch(expiry)
	if m == nil {
		return time.Time{}, domain.ErrInvalidExpiry
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > maxExpiryValue {
		return time.Time{}, domain.ErrInvalidExpiry
	}

	switch m[2] {
	case "H":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "D":
		return now.AddDate(0, 0, n), nil
	case "M":
		return now.AddDate(0, n, 0), nil
	default:
		return now.AddDate(n, 0, 0), nil
	}
}
