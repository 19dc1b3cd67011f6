package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwraps(t *testing.T) {
	err := fmt.Errorf("request join: %w", RateLimited("Must wait before requesting again", 12))
	if got := KindOf(err); got != KindRateLimited {
		t.Fatalf("KindOf() = %q, want %q", got, KindRateLimited)
	}
	if !Is(err, KindRateLimited) {
		t.Fatal("expected Is(err, KindRateLimited)")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("expected empty kind for plain error")
	}
}

func TestErrorString(t *testing.T) {
	err := Capacity("User already has 3 spaces")
	if err.Error() != "SPACE_LIMIT_REACHED: User already has 3 spaces" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	var nilErr *Error
	if nilErr.Error() != "" {
		t.Fatal("expected empty string for nil error")
	}
}
