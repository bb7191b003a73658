package metadata

import (
	"fmt"
	"strconv"
	"time"
)

var timeoutUnits = map[byte]time.Duration{
	'H': time.Hour,
	'M': time.Minute,
	'S': time.Second,
	'm': time.Millisecond,
	'u': time.Microsecond,
	'n': time.Nanosecond,
}

var timeoutUnitSuffix = map[time.Duration]byte{
	time.Hour:        'H',
	time.Minute:      'M',
	time.Second:      'S',
	time.Millisecond: 'm',
	time.Microsecond: 'u',
	time.Nanosecond:  'n',
}

// ParseTimeout parses a grpc-timeout header value ("<positive int><unit>",
// unit in {H,M,S,m,u,n}) into a Duration.
func ParseTimeout(raw string) (time.Duration, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("grpc-timeout %q is too short", raw)
	}
	suffix := raw[len(raw)-1]
	unit, ok := timeoutUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("grpc-timeout %q has unrecognized unit %q", raw, string(suffix))
	}
	n, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("grpc-timeout %q must be a positive integer", raw)
	}
	return time.Duration(n) * unit, nil
}

// FormatTimeout renders d as a grpc-timeout header value, picking the
// coarsest unit that represents d as a positive integer count, falling back
// to nanoseconds.
func FormatTimeout(d time.Duration) string {
	if d <= 0 {
		d = time.Millisecond
	}
	order := []time.Duration{time.Hour, time.Minute, time.Second, time.Millisecond, time.Microsecond, time.Nanosecond}
	for _, unit := range order {
		if d%unit == 0 {
			n := d / unit
			if n > 0 && n < 1e8 {
				return strconv.FormatInt(int64(n), 10) + string(timeoutUnitSuffix[unit])
			}
		}
	}
	return strconv.FormatInt(int64(d), 10) + "n"
}
