package batch

import (
	"fmt"
	"strings"

	"github.com/poiesic/insight/core"
)

// Policy decides what happens to the run when one batch fails.
// The zero value is not a valid policy; it must be chosen explicitly.
type Policy int

const (
	// FailFast aborts the whole run on the first failed batch.
	FailFast Policy = iota + 1

	// SkipAndContinue logs the failure, drops the batch and continues.
	SkipAndContinue
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case SkipAndContinue:
		return "skip"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts "fail-fast" or "skip" (and a few spellings of each).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail-fast", "failfast", "fail_fast", "abort":
		return FailFast, nil
	case "skip", "skip-and-continue", "skip_and_continue", "continue":
		return SkipAndContinue, nil
	default:
		return 0, fmt.Errorf("%w: unknown batch failure policy %q (want fail-fast or skip)", core.ErrConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so a Policy can be read
// from configuration files.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
