package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

// LoadFile reads a JSON policy file of the form
//
//	{"standard": 10, "extended": "120h", "short": "2d"}
//
// Numbers are days. Strings are Go durations or a day count with a "d" suffix.
// A missing file yields fallback unchanged.
func LoadFile(path string, fallback Durations) (Durations, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- operator-supplied policy path
	if errors.Is(err, fs.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a policy document. See LoadFile for the format.
func Parse(data []byte) (Durations, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	out := make(Durations, len(raw))
	for key, value := range raw {
		category, err := domain.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("policy: %w", err)
		}
		dur, err := parseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", key, err)
		}
		out[category] = dur
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDuration(value json.RawMessage) (time.Duration, error) {
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		days, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return fromDays(days, n.String())
	}

	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return 0, fmt.Errorf("expected number of days or duration string")
	}
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return fromDays(n, s)
	}
	return time.ParseDuration(s)
}

// maxDays is the largest day count that fits in a time.Duration.
const maxDays = float64(math.MaxInt64) / float64(Day)

func fromDays(days float64, raw string) (time.Duration, error) {
	if math.IsNaN(days) || days >= maxDays || days <= -maxDays {
		return 0, fmt.Errorf("day count %q out of range", raw)
	}
	return time.Duration(days * float64(Day)), nil
}

// FromDays builds durations from whole-day settings, skipping categories set to zero or less.
func FromDays(standard, extended, short int) Durations {
	out := Durations{}
	for c, days := range map[domain.Category]int{
		domain.CategoryStandard: standard,
		domain.CategoryExtended: extended,
		domain.CategoryShort:    short,
	} {
		if days > 0 {
			out[c] = time.Duration(days) * Day
		}
	}
	return out
}
