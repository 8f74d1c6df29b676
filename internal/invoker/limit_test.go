package invoker

import "testing"

func TestLimiter_SharedBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	lim := newLimiter(8, func() { calls++ })
	a, b := lim.stream(), lim.stream()

	n, err := a.Write([]byte("12345"))
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if lim.overflowed() {
		t.Fatal("overflowed() = true before budget is spent")
	}

	n, err = b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v, want 6, nil", n, err)
	}
	if !lim.overflowed() {
		t.Fatal("overflowed() = false after budget is exceeded")
	}
	if got := b.String(); got != "abc" {
		t.Errorf("second stream = %q, want %q", got, "abc")
	}

	_, _ = a.Write([]byte("more"))
	if got := a.String(); got != "12345" {
		t.Errorf("first stream = %q, want %q", got, "12345")
	}
	if calls != 1 {
		t.Errorf("onOverflow called %d times, want 1", calls)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("0123456789", 4); got != "0123…" {
		t.Errorf("truncate() = %q", got)
	}
	// A cut through a multi-byte rune drops the partial rune.
	if got := truncate("aé", 2); got != "a…" {
		t.Errorf("truncate() = %q", got)
	}
}
