package pipeline

import (
	"math"
	"testing"
	"time"
)

func fourStagePlan() Plan {
	return Plan{
		{Kind: StageDetect, Weight: 0.1},
		{Kind: StageCrop, Weight: 0.3},
		{Kind: StageOutpaint, Weight: 0.2},
		{Kind: StageRestore, Weight: 0.4},
	}
}

func TestPercentWeightedMean(t *testing.T) {
	tracker := newProgressTracker(1)
	tracker.add("a", fourStagePlan())
	tracker.add("b", fourStagePlan())
	tracker.add("c", fourStagePlan())

	// Item a fully done.
	for _, stage := range fourStagePlan() {
		tracker.stageStarted("a", stage.Kind)
		tracker.stageCompleted("a", stage.Kind, time.Second)
	}
	// Item b through the end of its 0.3-weight stage.
	tracker.stageStarted("b", StageDetect)
	tracker.stageCompleted("b", StageDetect, time.Second)
	tracker.stageStarted("b", StageCrop)
	tracker.stageCompleted("b", StageCrop, time.Second)
	// Item c untouched.

	got := tracker.percent()
	want := (1.0 + 0.4 + 0.0) / 3 * 100
	if math.Abs(got-want) > 0.1 {
		t.Fatalf("percent = %v, want ~%v", got, want)
	}
}

func TestPercentUsesSubProgress(t *testing.T) {
	tracker := newProgressTracker(1)
	tracker.add("a", fourStagePlan())

	tracker.stageStarted("a", StageDetect)
	tracker.stageCompleted("a", StageDetect, time.Second)
	tracker.stageStarted("a", StageCrop)
	tracker.stageProgress("a", 0.5)

	got := tracker.percent()
	want := (0.1 + 0.3*0.5) * 100
	if math.Abs(got-want) > 0.1 {
		t.Fatalf("percent = %v, want %v", got, want)
	}
}

func TestSubProgressNeverRegresses(t *testing.T) {
	tracker := newProgressTracker(1)
	tracker.add("a", fourStagePlan())
	tracker.stageStarted("a", StageRestore)
	tracker.stageProgress("a", 0.8)
	tracker.stageProgress("a", 0.2)

	// Stages before restore count as complete: 0.6 + 0.4*0.8 = 0.92.
	got := tracker.percent()
	if math.Abs(got-92) > 0.1 {
		t.Fatalf("percent = %v, regression applied", got)
	}
}

func TestDurationModelEWMA(t *testing.T) {
	model := newDurationModel()
	seed := model.expect(StageRestore)

	model.observe(StageRestore, seed*2)
	updated := model.expect(StageRestore)
	if updated <= seed || updated >= seed*2 {
		t.Fatalf("expected blend between %v and %v, got %v", seed, seed*2, updated)
	}

	// alpha=0.3: expected = 0.3*observed + 0.7*prior
	want := time.Duration(0.3*float64(seed*2) + 0.7*float64(seed))
	if diff := updated - want; diff < -time.Millisecond || diff > time.Millisecond {
		t.Fatalf("ewma = %v, want %v", updated, want)
	}
}

func TestETAShrinksAsStagesComplete(t *testing.T) {
	tracker := newProgressTracker(1)
	tracker.add("a", fourStagePlan())

	initial := tracker.eta()
	if initial <= 0 {
		t.Fatal("initial eta should be positive")
	}

	tracker.stageStarted("a", StageDetect)
	tracker.stageCompleted("a", StageDetect, seedDurations[StageDetect])
	tracker.stageStarted("a", StageCrop)

	if after := tracker.eta(); after >= initial {
		t.Fatalf("eta did not shrink: %v -> %v", initial, after)
	}
}
