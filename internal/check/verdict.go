// Package check decides whether the newest backup of a configured stream is
// valid.
package check

import (
	"fmt"
	"time"

	"github.com/imedwei/s3-backup-checker/internal/registry"
	"github.com/imedwei/s3-backup-checker/internal/storage"
	"github.com/imedwei/s3-backup-checker/internal/utils"
)

// Status is the outcome of evaluating a backup.
type Status int

const (
	// StatusValid means the newest backup is recent and large enough.
	StatusValid Status = iota
	// StatusNoObjectFound means no object matched the rule's filters.
	StatusNoObjectFound
	// StatusTooOld means the newest backup exceeds the age threshold.
	StatusTooOld
	// StatusTooSmall means the newest backup is below the minimum size.
	StatusTooSmall
)

// String returns the identifier used in responses and metric labels.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusNoObjectFound:
		return "no_object_found"
	case StatusTooOld:
		return "too_old"
	case StatusTooSmall:
		return "too_small"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusValid, StatusNoObjectFound, StatusTooOld, StatusTooSmall} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// Verdict is the result of evaluating the newest backup against a rule.
type Verdict struct {
	Status Status

	// Object is the evaluated backup, nil for StatusNoObjectFound.
	Object *storage.ObjectInfo

	// Age of Object at evaluation time, never negative.
	Age time.Duration
}

// Valid reports whether the backup passed every check.
func (v Verdict) Valid() bool {
	return v.Status == StatusValid
}

// SizeKB returns the size of the evaluated object in whole kilobytes.
func (v Verdict) SizeKB() int64 {
	if v.Object == nil {
		return 0
	}
	return v.Object.Size / 1024
}

// Message returns a human-readable description of the verdict.
func (v Verdict) Message(rule registry.Rule) string {
	switch v.Status {
	case StatusValid:
		return "Backup is OK!"
	case StatusNoObjectFound:
		return fmt.Sprintf("Could not find any files matching `%s` backup settings", rule.Name)
	case StatusTooOld:
		return fmt.Sprintf("Latest backup found is too old (%s, max %s)",
			utils.FormatDuration(v.Age), utils.FormatDuration(rule.MaxAge))
	case StatusTooSmall:
		return fmt.Sprintf("Latest backup found is too small (%s, min %s)",
			utils.FormatBytes(v.Object.Size), utils.FormatBytes(rule.MinSizeKB*1024))
	default:
		return v.Status.String()
	}
}

// Evaluate applies rule to the newest object found for it. A nil object means
// nothing matched. The result depends only on its arguments.
func Evaluate(object *storage.ObjectInfo, rule registry.Rule, now time.Time) Verdict {
	if object == nil {
		return Verdict{Status: StatusNoObjectFound}
	}

	// Clock skew can put LastModified in the future
	age := now.Sub(object.LastModified)
	if age < 0 {
		age = 0
	}

	verdict := Verdict{Object: object, Age: age}

	switch {
	case age > rule.MaxAge:
		verdict.Status = StatusTooOld
	case rule.MinSizeKB > 0 && object.Size/1024 < rule.MinSizeKB:
		verdict.Status = StatusTooSmall
	default:
		verdict.Status = StatusValid
	}

	return verdict
}
