// Package recurrence expands RFC 5545 recurrence rules into occurrence
// timestamps.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrEmptyRule is returned when a rule string carries no RRULE content.
var ErrEmptyRule = errors.New("recurrence rule is empty")

// Sequence yields occurrences in chronological order. The first occurrence is
// the anchor itself when the anchor matches the rule.
type Sequence interface {
	Next() (time.Time, bool)
	// Bound is the rule's own COUNT, or 0 when the rule has none.
	Bound() int
}

// Evaluator turns a stored rule into an occurrence sequence.
type Evaluator interface {
	Validate(rule string) error
	Expand(rule string, anchor time.Time) (Sequence, error)
}

// RRuleEvaluator implements Evaluator with rrule-go.
type RRuleEvaluator struct{}

func NewRRuleEvaluator() *RRuleEvaluator {
	return &RRuleEvaluator{}
}

func (e *RRuleEvaluator) Validate(rule string) error {
	_, err := parseRule(rule)
	return err
}

// Expand starts the rule at anchor, in anchor's location. Any DTSTART carried
// by the rule string is ignored.
func (e *RRuleEvaluator) Expand(rule string, anchor time.Time) (Sequence, error) {
	opt, err := parseRule(rule)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = anchor
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("building recurrence rule: %w", err)
	}
	return &rruleSequence{next: r.Iterator(), bound: opt.Count}, nil
}

type rruleSequence struct {
	next  rrule.Next
	bound int
}

func (s *rruleSequence) Next() (time.Time, bool) { return s.next() }

func (s *rruleSequence) Bound() int { return s.bound }

// parseRule accepts a bare rule ("FREQ=WEEKLY;COUNT=4"), an "RRULE:" line, or
// a multi-line block with DTSTART/RRULE lines.
func parseRule(rule string) (*rrule.ROption, error) {
	line := ""
	for _, l := range strings.Split(strings.TrimSpace(rule), "\n") {
		l = strings.TrimSpace(l)
		upper := strings.ToUpper(l)
		switch {
		case strings.HasPrefix(upper, "RRULE:"):
			line = l[len("RRULE:"):]
		case strings.HasPrefix(upper, "DTSTART"), strings.HasPrefix(upper, "EXDATE"), l == "":
		default:
			if line == "" {
				line = l
			}
		}
	}
	if line == "" {
		return nil, ErrEmptyRule
	}
	opt, err := rrule.StrToROption(line)
	if err != nil {
		return nil, fmt.Errorf("parsing recurrence rule: %w", err)
	}
	return opt, nil
}
