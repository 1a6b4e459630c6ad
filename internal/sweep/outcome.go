package sweep

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the terminal state of one invocation.
type Status int

const (
	StatusSuccess Status = iota
	StatusAcceptable
	StatusUnaccounted
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusAcceptable:
		return "acceptable"
	case StatusUnaccounted:
		return "unaccounted"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status name in reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome records one invocation.
type Outcome struct {
	Function  string `json:"function"`
	Signature string `json:"signature"`
	Query     string `json:"query,omitempty"`
	Status    Status `json:"status"`
	Rule      string `json:"rule,omitempty"`    // acceptable: matching rule
	Message   string `json:"message,omitempty"` // acceptable, unaccounted
	Err       error  `json:"-"`                 // unaccounted
}

// Report summarizes a sweep.
type Report struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"` // functions, operators
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Groups   int           `json:"groups"`
	Outcomes []Outcome     `json:"outcomes"`
}

// Count returns the number of outcomes with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Unaccounted returns the unaccounted outcomes in sweep order.
func (r *Report) Unaccounted() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusUnaccounted {
			out = append(out, o)
		}
	}
	return out
}

// Failure is the single error a sweep raises when any function failed in
// an unaccounted way.
type Failure struct {
	Count     int      // unaccounted outcomes
	Functions []string // distinct, sorted
	Cause     error    // first underlying error
}

func newFailure(unaccounted []Outcome) *Failure {
	names := make([]string, 0, len(unaccounted))
	for _, o := range unaccounted {
		names = append(names, o.Function)
	}
	slices.Sort(names)
	return &Failure{
		Count:     len(unaccounted),
		Functions: slices.Compact(names),
		Cause:     unaccounted[0].Err,
	}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%d unaccounted for errors occurred in bulk testing. "+
		"The following functions were affected: %s.",
		f.Count, strings.Join(f.Functions, ", "))
}

func (f *Failure) Unwrap() error { return f.Cause }
