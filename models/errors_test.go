package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &TransportError{Op: "fetch", Err: errors.New("timeout")}, true},
		{"blocked", &BlockedError{Domain: "d", Signal: "captcha"}, true},
		{"extraction", &ExtractionError{What: "price cell"}, true},
		{"validation", &ValidationError{Reason: "no fields"}, false},
		{"exhausted", &RetryExhaustedError{Attempts: 3, Last: errors.New("x")}, false},
		{"wrapped validation", fmt.Errorf("job: %w", &ValidationError{Reason: "bad"}), false},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%s) = %v; want %v", tt.name, got, tt.want)
		}
	}
}

func TestBurnsSession(t *testing.T) {
	if !BurnsSession(&BlockedError{Domain: "d", Signal: "challenge"}) {
		t.Error("BlockedError must burn the session")
	}
	if BurnsSession(&TransportError{Op: "fetch", Err: errors.New("reset")}) {
		t.Error("TransportError must not burn the session")
	}
	if !BurnsSession(fmt.Errorf("attempt: %w", &BlockedError{Domain: "d", Signal: "x"})) {
		t.Error("wrapped BlockedError must still burn the session")
	}
}

func TestRetryExhaustedUnwrapsLastError(t *testing.T) {
	blocked := &BlockedError{Domain: "d", Signal: "challenge"}
	err := &RetryExhaustedError{Attempts: 3, Last: blocked}

	var b *BlockedError
	if !errors.As(err, &b) {
		t.Error("the final attempt's error must stay reachable through errors.As")
	}
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		ok   bool
	}{
		{"bounds only", Job{AreaName: "A", SourceID: "s", Bounds: GeoBounds{NELat: 1, SWLat: 2}}, true},
		{"term only", Job{AreaName: "A", SourceID: "s", SearchTerm: "sea point"}, true},
		{"no area", Job{SourceID: "s", SearchTerm: "x"}, false},
		{"no source", Job{AreaName: "A", SearchTerm: "x"}, false},
		{"no target", Job{AreaName: "A", SourceID: "s"}, false},
	}

	for _, tt := range tests {
		err := tt.job.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: Validate = %v; want nil", tt.name, err)
		}
		if !tt.ok {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("%s: Validate = %v; want ValidationError", tt.name, err)
			}
		}
	}
}
