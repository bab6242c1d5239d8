package execution

import (
	"context"
	"testing"
)

func TestRunnerRegisterAndResolve(t *testing.T) {
	r := NewRunner()
	if err := r.Register("noop", func(context.Context, string) error { return nil }); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	fn, ok := r.Resolve("noop")
	if !ok {
		t.Fatalf("Resolve(noop) ok = false, want true")
	}
	if err := fn(context.Background(), ""); err != nil {
		t.Fatalf("fn() error = %v", err)
	}

	if _, ok := r.Resolve("missing"); ok {
		t.Fatalf("Resolve(missing) ok = true, want false")
	}
}

func TestRunnerRegisterValidation(t *testing.T) {
	r := NewRunner()
	if err := r.Register("", func(context.Context, string) error { return nil }); err == nil {
		t.Fatalf("Register(empty kind) error = nil, want error")
	}
	if err := r.Register("noop", nil); err == nil {
		t.Fatalf("Register(nil fn) error = nil, want error")
	}
}

func TestRunnerKindsSorted(t *testing.T) {
	r := NewRunner()
	for _, kind := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(kind, func(context.Context, string) error { return nil }); err != nil {
			t.Fatalf("Register(%q) error = %v", kind, err)
		}
	}
	kinds := r.Kinds()
	want := []string{"alpha", "mid", "zeta"}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds() len = %d, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("Kinds()[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}
