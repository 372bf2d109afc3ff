package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"patina/internal/config"
	"patina/internal/logging"
	"patina/internal/raster"
	"patina/internal/services"
	"patina/internal/services/gemini"
)

// RunStatus is the lifecycle state of one batch run.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCancelled RunStatus = "cancelled"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Options carries the per-run settings the scheduler and sequencers consume.
type Options struct {
	Concurrency        int
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	EnableOutpaint     bool
	EnableVerification bool
	PaddingFraction    float64
	OutputQuality      int
	TrimDarkEdges      bool
	OutputDir          string
}

// OptionsFrom maps application configuration onto run options.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Concurrency:        cfg.Pipeline.Concurrency,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		RetryBaseDelay:     time.Duration(cfg.Pipeline.RetryBaseDelay) * time.Second,
		RetryMaxDelay:      time.Duration(cfg.Pipeline.RetryMaxDelay) * time.Second,
		EnableOutpaint:     cfg.Pipeline.EnableOutpaint,
		EnableVerification: cfg.Pipeline.EnableVerification,
		PaddingFraction:    cfg.Pipeline.PaddingFraction,
		OutputQuality:      cfg.Pipeline.OutputQuality,
		TrimDarkEdges:      cfg.Pipeline.TrimDarkEdges,
		OutputDir:          cfg.Paths.OutputDir,
	}
}

func (o *Options) normalize() {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = time.Second
	}
	if o.RetryMaxDelay < o.RetryBaseDelay {
		o.RetryMaxDelay = o.RetryBaseDelay
	}
	if o.PaddingFraction < 0 || o.PaddingFraction > 0.5 {
		o.PaddingFraction = raster.DefaultPadding
	}
	if o.OutputQuality <= 0 || o.OutputQuality > 100 {
		o.OutputQuality = raster.DefaultQuality
	}
}

// Scheduler starts batch runs against a remote stage client.
type Scheduler struct {
	client   gemini.Client
	logger   *slog.Logger
	recorder Recorder
}

// NewScheduler constructs a scheduler. The recorder may be nil when history
// persistence is not wanted.
func NewScheduler(client gemini.Client, logger *slog.Logger, recorder Recorder) *Scheduler {
	return &Scheduler{
		client:   client,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		recorder: recorder,
	}
}

// Start launches a run over the supplied items. Configuration problems are
// reported here, before any item starts; they are the only run-level
// failures.
func (s *Scheduler) Start(ctx context.Context, items []*Item, opts Options) (*Run, error) {
	if s.client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "start", "remote stage client required", nil)
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "start", "no items submitted", nil)
	}
	for _, item := range items {
		if item == nil || len(item.Source) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "", "start", "item has no raster data", nil)
		}
	}
	opts.normalize()

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		id:       uuid.NewString(),
		ctx:      runCtx,
		cancelFn: cancel,
		status:   RunRunning,
		items:    items,
		opts:     opts,
		tracker:  newProgressTracker(opts.Concurrency),
		events:   newHub(),
		logger:   s.logger,
		recorder: s.recorder,
		resumed:  make(chan struct{}),
		done:     make(chan struct{}),
		started:  time.Now(),
	}
	run.verifier = newVerifier(s.client, s.logger)
	runCtx = services.WithRunID(runCtx, run.id)
	run.ctx = runCtx

	policies := DefaultPolicies(opts.MaxRetries, opts.RetryBaseDelay, opts.RetryMaxDelay)
	for _, item := range items {
		item.Status = StatusPending
		run.tracker.add(item.ID, NewPlan(opts.EnableOutpaint))
	}

	// Feed items in submission order; workers pull the next pending item as
	// their slot frees up.
	feed := make(chan *Item)
	go func() {
		defer close(feed)
		for _, item := range items {
			select {
			case feed <- item:
			case <-runCtx.Done():
				return
			}
		}
	}()

	run.wg.Add(opts.Concurrency)
	for i := 0; i < opts.Concurrency; i++ {
		go func() {
			defer run.wg.Done()
			for item := range feed {
				seq := &sequencer{
					run:      run,
					item:     item,
					client:   s.client,
					opts:     opts,
					plan:     NewPlan(opts.EnableOutpaint),
					policies: policies,
					tracker:  run.tracker,
					verifier: run.verifier,
					logger:   s.logger,
					sleep:    sleepContext,
				}
				seq.process(runCtx)
			}
		}()
	}

	go run.finalize()

	s.logger.Info("run started",
		logging.String(logging.FieldRunID, run.id),
		logging.Int("items", len(items)),
		logging.Int("concurrency", opts.Concurrency),
	)
	return run, nil
}

// Run is the handle for one in-flight batch.
type Run struct {
	id       string
	ctx      context.Context
	cancelFn context.CancelFunc
	opts     Options
	items    []*Item
	tracker  *progressTracker
	events   *hub
	verifier *verifier
	logger   *slog.Logger
	recorder Recorder

	wg      sync.WaitGroup
	done    chan struct{}
	started time.Time

	mu       sync.Mutex
	status   RunStatus
	resumed  chan struct{}
	finished int
	report   *Report
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Status returns the current run status.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Pause stops new stages from starting. In-flight stage calls complete
// normally.
func (r *Run) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RunRunning {
		return
	}
	r.status = RunPaused
	r.resumed = make(chan struct{})
	r.logger.Info("run paused", logging.String(logging.FieldRunID, r.id))
}

// Resume lifts a pause.
func (r *Run) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RunPaused {
		return
	}
	r.status = RunRunning
	close(r.resumed)
	r.logger.Info("run resumed", logging.String(logging.FieldRunID, r.id))
}

// Cancel aborts the run: in-flight remote calls are interrupted through
// context cancellation and all non-terminal items end up Cancelled.
// Cancellation is irreversible.
func (r *Run) Cancel() {
	r.mu.Lock()
	if r.status == RunCancelled || r.status == RunCompleted {
		r.mu.Unlock()
		return
	}
	wasPaused := r.status == RunPaused
	r.status = RunCancelled
	if wasPaused {
		close(r.resumed)
	}
	r.mu.Unlock()

	r.cancelFn()
	r.logger.Info("run cancelled", logging.String(logging.FieldRunID, r.id))
}

// Subscribe returns a progress event stream and its cancel function.
func (r *Run) Subscribe() (<-chan ProgressEvent, func()) {
	return r.events.subscribe()
}

// Wait blocks until every item is terminal and all verification calls have
// returned, then yields the final report.
func (r *Run) Wait() Report {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.report
}

// Snapshot returns the current aggregate state for pollers.
func (r *Run) Snapshot() ProgressEvent {
	r.mu.Lock()
	status := r.status
	finished := r.finished
	r.mu.Unlock()
	return ProgressEvent{
		RunID:         r.id,
		Status:        status,
		TotalItems:    len(r.items),
		FinishedItems: finished,
		Percent:       r.tracker.percent(),
		ETA:           r.tracker.eta(),
	}
}

// gate blocks while the run is paused and fails fast once it is cancelled.
// Sequencers call it before starting each stage attempt.
func (r *Run) gate(ctx context.Context) error {
	for {
		r.mu.Lock()
		status := r.status
		resumed := r.resumed
		r.mu.Unlock()

		switch status {
		case RunCancelled:
			return context.Canceled
		case RunPaused:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-resumed:
			}
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
	}
}

func (r *Run) setItemStatus(item *Item, status ItemStatus) {
	item.Status = status
}

func (r *Run) publishProgress(item *Item, stage StageKind, message string) {
	r.mu.Lock()
	status := r.status
	finished := r.finished
	r.mu.Unlock()
	r.events.publish(ProgressEvent{
		RunID:         r.id,
		Status:        status,
		TotalItems:    len(r.items),
		FinishedItems: finished,
		CurrentItem:   item.ID,
		CurrentStage:  stage,
		Percent:       r.tracker.percent(),
		ETA:           r.tracker.eta(),
		Message:       message,
	})
}

func (r *Run) itemDone(item *Item) {
	r.mu.Lock()
	r.finished++
	r.mu.Unlock()
	r.publishProgress(item, "", string(item.Status))
}

// finalize waits for the workers, settles terminal states, records history,
// and closes the event stream.
func (r *Run) finalize() {
	defer close(r.done)
	r.wg.Wait()
	r.verifier.wait()

	r.mu.Lock()
	for _, item := range r.items {
		if !item.Status.Terminal() {
			item.Status = StatusCancelled
			if item.FinishedAt.IsZero() {
				item.FinishedAt = time.Now()
			}
		}
	}
	if r.status != RunCancelled {
		r.status = RunCompleted
		if allFailedLocked(r.items) {
			r.status = RunFailed
		}
	}
	r.report = r.buildReportLocked()
	report := *r.report
	r.mu.Unlock()

	if r.recorder != nil {
		recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.recorder.RecordRun(services.WithRunID(recordCtx, r.id), report); err != nil {
			r.logger.Warn("history record failed",
				logging.String(logging.FieldRunID, r.id),
				logging.Error(err),
			)
		}
	}

	r.events.publish(ProgressEvent{
		RunID:         r.id,
		Status:        report.Status,
		TotalItems:    len(r.items),
		FinishedItems: len(r.items),
		Percent:       r.tracker.percent(),
		Message:       "run finished",
	})
	r.events.close()
	r.logger.Info("run finished",
		logging.String(logging.FieldRunID, r.id),
		logging.Int("completed", report.Completed()),
		logging.Int("failed", report.Failed()),
		logging.Int("cancelled", report.Cancelled()),
		logging.Duration("run_duration", report.FinishedAt.Sub(report.StartedAt)),
	)
}

func (r *Run) buildReportLocked() *Report {
	report := &Report{
		RunID:      r.id,
		Status:     r.status,
		StartedAt:  r.started,
		FinishedAt: time.Now(),
		Items:      make([]ItemReport, 0, len(r.items)),
	}
	for _, item := range r.items {
		ir := ItemReport{
			ItemID:     item.ID,
			Name:       item.Name,
			Status:     item.Status,
			PhotoCount: len(item.Photos),
			Stages:     item.Results,
		}
		if item.Err != nil {
			ir.FailedStage = item.FailedStage
			ir.Error = item.Err.Error()
		}
		if !item.StartedAt.IsZero() && !item.FinishedAt.IsZero() {
			ir.Duration = item.FinishedAt.Sub(item.StartedAt)
		}
		for _, photo := range item.Photos {
			ir.Photos = append(ir.Photos, PhotoReport{
				Index:        photo.Index,
				Label:        photo.Region.Label,
				Width:        photo.Box.W,
				Height:       photo.Box.H,
				Rotation:     photo.Region.Rotation,
				Outpainted:   photo.Outpainted,
				Restored:     photo.Restored,
				Improvements: photo.Improvements,
				OutputPath:   photo.OutputPath,
				Notes:        photo.Notes,
			})
		}
		report.Items = append(report.Items, ir)
	}
	return report
}

func allFailedLocked(items []*Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Status != StatusFailed {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
