// Package timex parses the compact duration notation used for token
// lifetimes ("15m", "7d") and exposes a JSON-friendly Duration type.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidFormat is returned for any spec that is not "<digits><unit>"
// with unit one of s, m, h, d.
var ErrInvalidFormat = errors.New("invalid duration format")

var expiryRe = regexp.MustCompile(`^(\d+)([smhd])$`)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseExpiry converts a compact spec such as "15m" or "7d" to a duration.
// Composite values like "1h30m" are rejected.
func ParseExpiry(spec string) (time.Duration, error) {
	m := expiryRe.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, spec)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, spec)
	}

	unit := units[m[2]]
	if n > int64(1<<63-1)/int64(unit) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidFormat, spec)
	}

	return time.Duration(n) * unit, nil
}

// Duration wraps time.Duration for JSON config files. It accepts either a
// compact string ("30s", "7d") or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := ParseExpiry(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("%w: unsupported json value %v", ErrInvalidFormat, v)
	}
}
