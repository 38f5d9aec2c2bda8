// Package age parses the human-friendly backup age thresholds used in rule files.
package age

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is matched by every error returned from Parse.
var ErrInvalid = errors.New("invalid age")

// DefaultUnit is applied when the value carries no unit letter.
const DefaultUnit = 'H'

// units maps a unit letter to its duration.
var units = map[byte]time.Duration{
	'M': time.Minute,
	'H': time.Hour,
	'D': 24 * time.Hour,
	'W': 7 * 24 * time.Hour,
}

// ParseError describes why an age value was rejected.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid age %q: %s", e.Input, e.Reason)
}

// Is makes errors.Is(err, ErrInvalid) hold for every ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalid
}

// Parse converts values such as "90M", "3H", "2D" or "3W" into a duration.
// A bare number is read as hours. The unit letter is case-insensitive and
// surrounding whitespace is ignored.
func Parse(text string) (time.Duration, error) {
	value := strings.TrimSpace(text)
	if value == "" {
		return 0, &ParseError{Input: text, Reason: "empty value"}
	}

	unit := byte(DefaultUnit)
	digits := value
	if last := value[len(value)-1]; isLetter(last) {
		unit = upper(last)
		digits = value[:len(value)-1]
	}

	if digits == "" {
		return 0, &ParseError{Input: text, Reason: "missing number"}
	}
	if digits[0] == '-' {
		return 0, &ParseError{Input: text, Reason: "negative values are not allowed"}
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, &ParseError{Input: text, Reason: fmt.Sprintf("unexpected character %q", digits[i])}
		}
	}

	multiplier, ok := units[unit]
	if !ok {
		return 0, &ParseError{Input: text, Reason: fmt.Sprintf("unknown unit %q (use M, H, D or W)", unit)}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n > math.MaxInt64/int64(multiplier) {
		return 0, &ParseError{Input: text, Reason: "value out of range"}
	}

	return time.Duration(n) * multiplier, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(text string) time.Duration {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return d
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
