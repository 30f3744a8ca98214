package runerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewNilIsNil(t *testing.T) {
	if err := New(KindTransport, "fetch", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := Transport("hn fetch", errors.New("connection refused"))
	wrapped := fmt.Errorf("pull_raw: %w", base)

	if got := KindOf(wrapped); got != KindTransport {
		t.Fatalf("KindOf = %q, want %q", got, KindTransport)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("KindOf(plain) = %q, want %q", got, KindUnknown)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q, want empty", got)
	}
}

func TestErrorMessageIncludesOp(t *testing.T) {
	err := Newf(KindRanking, "rank", "no problems to rank")
	if err.Error() != "rank: no problems to rank" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	bare := &Error{Kind: KindRanking, Err: errors.New("x")}
	if bare.Error() != "x" {
		t.Fatalf("unexpected bare message: %q", bare.Error())
	}
}

func TestHaltSentinels(t *testing.T) {
	kill := New(KindKillEngaged, "before pull_raw", errors.New("sentinel present"))
	if !errors.Is(kill, ErrKillEngaged) {
		t.Fatal("expected kill error to match ErrKillEngaged")
	}
	if errors.Is(kill, ErrApprovalRequired) {
		t.Fatal("kill error must not match ErrApprovalRequired")
	}
	if !IsHalt(kill) {
		t.Fatal("kill should be a halt")
	}

	gate := New(KindApprovalRequired, "gate", errors.New("no record"))
	if !errors.Is(fmt.Errorf("wrapped: %w", gate), ErrApprovalRequired) {
		t.Fatal("expected approval error to match ErrApprovalRequired")
	}
	if !IsHalt(gate) {
		t.Fatal("approval required should be a halt")
	}

	if IsHalt(Validation("load", errors.New("bad json"))) {
		t.Fatal("validation error is a failure, not a halt")
	}
}
