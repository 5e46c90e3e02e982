package probe

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// parseDurationTag parses a duration of the form HH:MM:SS.fff as found in the
// DURATION tag of e.g. Matroska streams and returns the duration in seconds.
func parseDurationTag(tag string) (float64, error) {
	tag = strings.TrimSpace(tag)
	if len(tag) == 0 {
		return 0, fmt.Errorf("empty duration")
	}

	hms, fraction, _ := strings.Cut(tag, ".")

	parts := strings.Split(hms, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration '%s'", tag)
	}

	total := 0.0
	factor := 1.0

	for i := len(parts) - 1; i >= 0; i-- {
		if !isDigits(parts[i]) {
			return 0, fmt.Errorf("invalid duration '%s'", tag)
		}

		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return 0, fmt.Errorf("invalid duration '%s': %w", tag, err)
		}

		total += float64(v) * factor
		factor *= 60
	}

	if len(fraction) != 0 {
		if !isDigits(fraction) {
			return 0, fmt.Errorf("invalid duration '%s'", tag)
		}

		f, err := strconv.ParseFloat("0."+fraction, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration '%s': %w", tag, err)
		}

		total += f
	}

	return total, nil
}

// durationTag returns the value of the DURATION tag. The name of the tag is matched
// case-insensitive.
func durationTag(tags map[string]string) (string, bool) {
	if v, ok := tags["DURATION"]; ok {
		return v, true
	}

	for k, v := range tags {
		if strings.EqualFold(k, "duration") {
			return v, true
		}
	}

	return "", false
}

// parseFrameRate converts a rational frame rate (e.g. 30000/1001) into a float.
// An undefined frame rate (0/0) yields 0.
func parseFrameRate(rate string) (float64, error) {
	rate = strings.TrimSpace(rate)
	if len(rate) == 0 || rate == "0/0" {
		return 0, nil
	}

	r, ok := new(big.Rat).SetString(rate)
	if !ok {
		return 0, fmt.Errorf("invalid frame rate '%s'", rate)
	}

	f, _ := r.Float64()

	return f, nil
}

// parseSeconds parses a time value of the prober. A missing value or N/A yields nil.
func parseSeconds(value string) *float64 {
	value = strings.TrimSpace(value)
	if len(value) == 0 || value == "N/A" {
		return nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}

	return &f
}

func parseInt(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if len(value) == 0 || value == "N/A" {
		return 0, false
	}

	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// kbits converts bits per second to kbit/s (1 kbit = 1024 bit), rounded to two
// decimal places.
func kbits(bitrate float64) float64 {
	return round2(bitrate / 1024.0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isDigits(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
