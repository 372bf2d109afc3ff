package pipeline

import (
	"sync"
	"time"
)

// Seed durations used for ETA before the run has observed real stage
// timings. Values follow the provider timeout proportions.
var seedDurations = map[StageKind]time.Duration{
	StageDetect:   10 * time.Second,
	StageCrop:     500 * time.Millisecond,
	StageOutpaint: 30 * time.Second,
	StageRestore:  45 * time.Second,
}

const ewmaAlpha = 0.3

// durationModel tracks expected per-stage durations as an exponentially
// weighted moving average over observations within one run.
type durationModel struct {
	mu       sync.Mutex
	expected map[StageKind]time.Duration
}

func newDurationModel() *durationModel {
	expected := make(map[StageKind]time.Duration, len(seedDurations))
	for kind, d := range seedDurations {
		expected[kind] = d
	}
	return &durationModel{expected: expected}
}

func (m *durationModel) observe(kind StageKind, observed time.Duration) {
	if observed <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prior, ok := m.expected[kind]
	if !ok {
		m.expected[kind] = observed
		return
	}
	m.expected[kind] = time.Duration(ewmaAlpha*float64(observed) + (1-ewmaAlpha)*float64(prior))
}

func (m *durationModel) expect(kind StageKind) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expected[kind]
}

type itemProgress struct {
	plan        Plan
	currentIdx  int
	subProgress float64
	done        bool
}

// fraction is Σ(completed stage weights) + current stage weight × its own
// sub-progress.
func (ip *itemProgress) fraction() float64 {
	if ip.done {
		return 1
	}
	var completed float64
	for i := 0; i < ip.currentIdx && i < len(ip.plan); i++ {
		completed += ip.plan[i].Weight
	}
	if ip.currentIdx >= 0 && ip.currentIdx < len(ip.plan) {
		completed += ip.plan[ip.currentIdx].Weight * ip.subProgress
	}
	if completed > 1 {
		completed = 1
	}
	return completed
}

// progressTracker aggregates weighted progress and advisory ETA across all
// items in a run.
type progressTracker struct {
	mu          sync.Mutex
	order       []string
	items       map[string]*itemProgress
	durations   *durationModel
	concurrency int
}

func newProgressTracker(concurrency int) *progressTracker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &progressTracker{
		items:       make(map[string]*itemProgress),
		durations:   newDurationModel(),
		concurrency: concurrency,
	}
}

func (t *progressTracker) add(itemID string, plan Plan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[itemID]; exists {
		return
	}
	t.order = append(t.order, itemID)
	t.items[itemID] = &itemProgress{plan: plan, currentIdx: -1}
}

// replan swaps an item's stage list, preserving the current stage position.
// Used when detection shows outpainting is unnecessary.
func (t *progressTracker) replan(itemID string, plan Plan, current StageKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ip, ok := t.items[itemID]
	if !ok {
		return
	}
	ip.plan = plan
	ip.currentIdx = plan.Index(current)
}

func (t *progressTracker) stageStarted(itemID string, kind StageKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ip, ok := t.items[itemID]; ok {
		ip.currentIdx = ip.plan.Index(kind)
		ip.subProgress = 0
	}
}

func (t *progressTracker) stageProgress(itemID string, sub float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ip, ok := t.items[itemID]; ok {
		if sub < ip.subProgress {
			return
		}
		if sub > 1 {
			sub = 1
		}
		ip.subProgress = sub
	}
}

func (t *progressTracker) stageCompleted(itemID string, kind StageKind, took time.Duration) {
	t.durations.observe(kind, took)
	t.mu.Lock()
	defer t.mu.Unlock()
	ip, ok := t.items[itemID]
	if !ok {
		return
	}
	idx := ip.plan.Index(kind)
	if idx >= 0 {
		ip.currentIdx = idx
		ip.subProgress = 1
	}
	if idx == len(ip.plan)-1 {
		ip.done = true
	}
}

// itemFinished marks the item terminal. Completed items count as fully done;
// failed and cancelled items freeze at their current fraction.
func (t *progressTracker) itemFinished(itemID string, completed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ip, ok := t.items[itemID]; ok && completed {
		ip.done = true
	}
}

// percent is the mean of all items' fractional completion, as a percentage.
func (t *progressTracker) percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) == 0 {
		return 0
	}
	var total float64
	for _, id := range t.order {
		total += t.items[id].fraction()
	}
	return total / float64(len(t.order)) * 100
}

// eta sums expected durations of all not-yet-completed stages across
// unfinished items, spread over the concurrency bound. Advisory only.
func (t *progressTracker) eta() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var remaining time.Duration
	for _, id := range t.order {
		ip := t.items[id]
		if ip.done {
			continue
		}
		start := ip.currentIdx
		if start < 0 {
			start = 0
		}
		for i := start; i < len(ip.plan); i++ {
			expected := t.durations.expect(ip.plan[i].Kind)
			if i == ip.currentIdx {
				expected = time.Duration(float64(expected) * (1 - ip.subProgress))
			}
			remaining += expected
		}
	}
	return remaining / time.Duration(t.concurrency)
}
