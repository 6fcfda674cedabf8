package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRegex = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)$`)

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// ParseDurationString converts strings like "500ms", "10s", "5m", "1h" or
// "7d" into a time.Duration. An empty string or a bare "0" is zero.
func ParseDurationString(durationStr string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(durationStr))
	if s == "" || s == "0" {
		return 0, nil
	}

	matches := durationRegex.FindStringSubmatch(s)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid duration string format: %s. Use '500ms', '10s', '5m', '1h', '7d'", durationStr)
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration numeric value: %s", matches[1])
	}
	return time.Duration(value) * durationUnits[matches[2]], nil
}

// SplitList splits a comma separated list, trimming blanks and dropping
// empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// EnvKey turns a name into an environment variable suffix: "ops-mail" becomes "OPS_MAIL".
func EnvKey(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(strings.TrimSpace(name)))
}
