// Package validate confirms or rejects vulnerability candidates by asking
// a text-completion model whether the matched code actually exhibits the
// described weakness.
package validate

import (
	"context"
)

// Verdict is the validation outcome for one (candidate, snippet) pair.
type Verdict struct {
	// Confirmed is true when the model judges the code vulnerable.
	Confirmed bool `json:"confirmed"`

	// Severity is the model's assessment: critical, high, medium, low, info.
	Severity string `json:"severity"`

	// Confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Rationale is a short free-text justification.
	Rationale string `json:"rationale"`
}

// Provider validates one candidate against a code snippet.
type Provider interface {
	Validate(ctx context.Context, candidateDesc, snippet string) (Verdict, error)
}

// StubProvider confirms everything with a fixed verdict. Used in tests and
// when no validation credentials are configured while the tier demands a
// validate stage.
type StubProvider struct {
	Result Verdict
	Err    error

	// Calls counts invocations for test assertions.
	Calls int
}

var _ Provider = (*StubProvider)(nil)

func (s *StubProvider) Validate(_ context.Context, _, _ string) (Verdict, error) {
	s.Calls++
	if s.Err != nil {
		return Verdict{}, s.Err
	}
	return s.Result, nil
}
