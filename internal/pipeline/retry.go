package pipeline

import "time"

// RetryPolicy decides, per stage-attempt failure, whether to retry and after
// what delay. It is a pure function of the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// Delay returns the backoff before the attempt following failedAttempt
// (1-based), or ok=false when the budget is exhausted.
func (p RetryPolicy) Delay(failedAttempt int) (time.Duration, bool) {
	if failedAttempt < 1 || failedAttempt >= p.MaxAttempts {
		return 0, false
	}
	delay := float64(p.BaseDelay)
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 1; i < failedAttempt; i++ {
		delay *= multiplier
	}
	capped := time.Duration(delay)
	if p.MaxDelay > 0 && capped > p.MaxDelay {
		capped = p.MaxDelay
	}
	if capped < 0 {
		capped = 0
	}
	return capped, true
}

// PolicySet maps stage kinds to their retry policies.
type PolicySet map[StageKind]RetryPolicy

// For returns the policy for the stage, falling back to a single attempt.
func (s PolicySet) For(kind StageKind) RetryPolicy {
	if policy, ok := s[kind]; ok {
		return policy
	}
	return RetryPolicy{MaxAttempts: 1}
}

// DefaultPolicies builds the per-stage retry policies. Detection and crop
// allow one retry, restoration and outpainting use the full configured
// budget, and verification never retries.
func DefaultPolicies(maxRetries int, baseDelay, maxDelay time.Duration) PolicySet {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	remote := RetryPolicy{
		MaxAttempts: maxRetries,
		BaseDelay:   baseDelay,
		Multiplier:  2,
		MaxDelay:    maxDelay,
	}
	short := remote
	short.MaxAttempts = min(2, maxRetries)
	return PolicySet{
		StageDetect:   short,
		StageCrop:     short,
		StageOutpaint: remote,
		StageRestore:  remote,
		StageVerify:   {MaxAttempts: 1},
	}
}
