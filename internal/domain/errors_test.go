package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDetailError_UnwrapsToKind(t *testing.T) {
	err := NewDetailError(ErrEmptyOutput, "ModuleNotFoundError: insightface")
	if !errors.Is(err, ErrEmptyOutput) {
		t.Fatal("expected errors.Is to match kind")
	}
	if DetailsOf(err) != "ModuleNotFoundError: insightface" {
		t.Errorf("DetailsOf() = %q", DetailsOf(err))
	}
}

func TestDetailsOf_FallsBackToMessage(t *testing.T) {
	err := errors.New("boom")
	if DetailsOf(err) != "boom" {
		t.Errorf("DetailsOf() = %q", DetailsOf(err))
	}
	if DetailsOf(NewDetailError(ErrStaging, "")) != ErrStaging.Error() {
		t.Error("empty details should fall back to the kind message")
	}
}

func TestStageError_KeepsKind(t *testing.T) {
	inner := Detailf(ErrInvocationTimeout, "exceeded %s", "2m0s")
	err := fmt.Errorf("pipeline: %w", &StageError{Op: OpSearch, Stage: StageStaged, Err: inner})

	if !errors.Is(err, ErrInvocationTimeout) {
		t.Fatal("expected kind through StageError")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("expected StageError")
	}
	if se.Stage != StageStaged || se.Op != OpSearch {
		t.Errorf("stage/op = %s/%s", se.Stage, se.Op)
	}
	if DetailsOf(err) != "exceeded 2m0s" {
		t.Errorf("DetailsOf() = %q", DetailsOf(err))
	}
}

func TestKindLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewDetailError(ErrUnbalancedPayload, "x"), "unbalanced_payload"},
		{fmt.Errorf("wrap: %w", ErrStaging), "staging"},
		{errors.New("unknown"), "internal"},
	}
	for _, tc := range tests {
		if got := KindLabel(tc.err); got != tc.want {
			t.Errorf("KindLabel(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if KindOf(errors.New("unknown")) != nil {
		t.Error("KindOf should be nil for unknown errors")
	}
}

func TestOperation_Arity(t *testing.T) {
	if OpSearch.Arity() != 1 || OpCompare.Arity() != 2 {
		t.Errorf("arity search=%d compare=%d", OpSearch.Arity(), OpCompare.Arity())
	}
	if Operation("detect").IsValid() {
		t.Error("unknown operation should be invalid")
	}
}

func TestInvocationUsage_NilSafe(t *testing.T) {
	var u *InvocationUsage
	u.Record(0, 0)

	ctx, usage := NewContextWithInvocationUsage(t.Context())
	InvocationUsageFromContext(ctx).Record(5, 1)
	if !usage.Invoked || usage.ExitCode != 1 {
		t.Errorf("usage = %+v", usage)
	}
}
