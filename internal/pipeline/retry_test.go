package pipeline

import (
	"testing"
	"time"
)

func TestRetryPolicyDelayGrowth(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 10 * time.Second}

	delay, ok := policy.Delay(1)
	if !ok || delay != time.Second {
		t.Fatalf("attempt 1: delay=%v ok=%v", delay, ok)
	}
	delay, ok = policy.Delay(2)
	if !ok || delay != 2*time.Second {
		t.Fatalf("attempt 2: delay=%v ok=%v", delay, ok)
	}
	delay, ok = policy.Delay(3)
	if !ok || delay != 4*time.Second {
		t.Fatalf("attempt 3: delay=%v ok=%v", delay, ok)
	}
	if _, ok := policy.Delay(4); ok {
		t.Fatal("attempt 4 should exhaust the budget")
	}
}

func TestRetryPolicyCapsDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second, Multiplier: 3, MaxDelay: 5 * time.Second}
	delay, ok := policy.Delay(5)
	if !ok {
		t.Fatal("attempt 5 should still retry")
	}
	if delay != 5*time.Second {
		t.Fatalf("delay = %v, want capped 5s", delay)
	}
}

func TestRetryPolicySingleAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 1}
	if _, ok := policy.Delay(1); ok {
		t.Fatal("single-attempt policy must never retry")
	}
}

func TestDefaultPolicies(t *testing.T) {
	set := DefaultPolicies(3, time.Second, 10*time.Second)

	if got := set.For(StageRestore).MaxAttempts; got != 3 {
		t.Errorf("restore attempts = %d, want 3", got)
	}
	if got := set.For(StageOutpaint).MaxAttempts; got != 3 {
		t.Errorf("outpaint attempts = %d, want 3", got)
	}
	if got := set.For(StageDetect).MaxAttempts; got != 2 {
		t.Errorf("detect attempts = %d, want 2", got)
	}
	if got := set.For(StageCrop).MaxAttempts; got != 2 {
		t.Errorf("crop attempts = %d, want 2", got)
	}
	if got := set.For(StageVerify).MaxAttempts; got != 1 {
		t.Errorf("verify attempts = %d, want 1", got)
	}
	if got := set.For(StageKind("unknown")).MaxAttempts; got != 1 {
		t.Errorf("unknown stage attempts = %d, want fallback 1", got)
	}
}
