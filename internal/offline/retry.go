package offline

import (
	"errors"
	"time"
)

// Verdict is the outcome of a failed attempt.
type Verdict int

const (
	// Retry schedules another attempt after Decision.Delay.
	Retry Verdict = iota
	// Discard rolls the entry back and removes it.
	Discard
	// Park keeps the entry queued with no timer.
	Park
)

func (v Verdict) String() string {
	switch v {
	case Retry:
		return "retry"
	case Discard:
		return "discard"
	case Park:
		return "park"
	}
	return "unknown"
}

type Decision struct {
	Verdict Verdict
	Delay   time.Duration
}

// RetryPolicy maps (attempt, error) to a Decision with exponential backoff.
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: time.Second, Max: 10 * time.Minute}
}

// Next decides what to do after attempt (counted from 0) failed with err.
// A status in 1..499 is permanent. Anything else waits Base*2^attempt,
// or parks once that would exceed Max.
func (p RetryPolicy) Next(attempt int, err error) Decision {
	if s := StatusOf(err); s > 0 && s < 500 {
		return Decision{Verdict: Discard}
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 62 {
		return Decision{Verdict: Park}
	}
	d := p.Base << uint(attempt)
	if d <= 0 || d > p.Max || d>>uint(attempt) != p.Base {
		return Decision{Verdict: Park}
	}
	return Decision{Verdict: Retry, Delay: d}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
