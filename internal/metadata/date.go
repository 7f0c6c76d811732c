package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatHeaderDate renders t the way libewf's date header values do:
// space-separated "YYYY MM DD HH MM SS" in UTC, the format libewf has
// used since its EnCase4 header generation.
func FormatHeaderDate(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%d %d %d %d %d %d", u.Year(), int(u.Month()), u.Day(), u.Hour(), u.Minute(), u.Second())
}

// ParseHeaderDate parses the space-separated date format written by
// FormatHeaderDate. Malformed dates are reported as an error rather
// than silently defaulted. The header-value parse path does not call
// it; date values are kept there as plain strings.
func ParseHeaderDate(s string) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return time.Time{}, fmt.Errorf("metadata: header date %q: expected 6 fields, got %d", s, len(fields))
	}
	nums := make([]int, 6)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, fmt.Errorf("metadata: header date %q: field %d not numeric: %w", s, i, err)
		}
		nums[i] = n
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC), nil
}
