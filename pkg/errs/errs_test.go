package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", E(NotFound, "room %s", "r1"), NotFound},
		{"wrapped", fmt.Errorf("outer: %w", E(Conflict, "dup")), Conflict},
		{"wrap helper", Wrap(Forbidden, errors.New("inner"), "denied"), Forbidden},
		{"plain error", errors.New("boom"), Internal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := KindOf(c.err); got != c.want {
				t.Fatalf("KindOf(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestWrapPreservesChain(t *testing.T) {
	inner := errors.New("disk full")
	err := Wrap(Internal, inner, "save message")
	if !errors.Is(err, inner) {
		t.Fatalf("wrapped chain lost inner error")
	}
	if err.Error() != "save message: disk full" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestIsKindNil(t *testing.T) {
	if IsKind(nil, Internal) {
		t.Fatalf("nil error must not match any kind")
	}
}

func TestKindStrings(t *testing.T) {
	if InvalidArgument.String() != "invalid_argument" || Forbidden.String() != "forbidden" {
		t.Fatalf("kind strings drifted")
	}
}
