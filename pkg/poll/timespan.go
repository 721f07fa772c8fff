package poll

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timespanPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-z]+)`)

var timespanUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "wk": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// ParseTimespan reads a human duration such as "90s", "1h30m", "2 days" or
// "1w". Anything Go's duration syntax accepts is accepted too. The result is
// always positive.
func ParseTimespan(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, InputError("The poll duration must be positive.")
		}
		return d, nil
	}

	matches := timespanPart.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, invalidTimespan(s)
	}

	var total time.Duration
	consumed := 0
	for _, m := range matches {
		if strings.TrimSpace(s[consumed:m[0]]) != "" {
			return 0, invalidTimespan(s)
		}
		consumed = m[1]

		n, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return 0, invalidTimespan(s)
		}
		unit, ok := timespanUnits[s[m[4]:m[5]]]
		if !ok {
			return 0, invalidTimespan(s)
		}
		total += time.Duration(n * float64(unit))
	}
	if strings.TrimSpace(s[consumed:]) != "" {
		return 0, invalidTimespan(s)
	}
	if total <= 0 {
		return 0, InputError("The poll duration must be positive.")
	}
	return total, nil
}

func invalidTimespan(s string) error {
	return InputError("`" + s + "` is not a valid duration. Try something like `10m`, `2h` or `1d`.")
}
