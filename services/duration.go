package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)$`)

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// DurationError reports an SLA target that is not <int><unit>
type DurationError struct {
	Value string
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("invalid duration %q: expected an integer followed by ms, s, m, h or d", e.Value)
}

// ParseDuration parses SLA targets such as "15m", "2h" or "500ms"
func ParseDuration(value string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, &DurationError{Value: value}
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, &DurationError{Value: value}
	}
	unit := durationUnits[match[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, &DurationError{Value: value}
	}
	return time.Duration(n) * unit, nil
}
