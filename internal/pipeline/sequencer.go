package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"patina/internal/logging"
	"patina/internal/raster"
	"patina/internal/services"
	"patina/internal/services/gemini"
)

// sequencer drives one item through its ordered stage list, applying the
// retry policies and dispatching verification without blocking on it.
type sequencer struct {
	run      *Run
	item     *Item
	client   gemini.Client
	opts     Options
	plan     Plan
	policies PolicySet
	tracker  *progressTracker
	verifier *verifier
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error

	source image.Image
	srcW   int
	srcH   int
}

func (s *sequencer) process(ctx context.Context) {
	ctx = services.WithItemID(ctx, s.item.ID)
	s.item.StartedAt = time.Now()

	err := s.runStages(ctx)
	switch {
	case err == nil:
		s.finish(StatusCompleted)
	case services.IsCancelled(err):
		s.finish(StatusCancelled)
	default:
		s.logger.Error("item failed",
			logging.String(logging.FieldItemID, s.item.ID),
			logging.String(logging.FieldStage, string(s.item.FailedStage)),
			logging.Error(err),
		)
		s.finish(StatusFailed)
	}
}

func (s *sequencer) runStages(ctx context.Context) error {
	if err := s.execute(ctx, StageDetect, StatusDetecting, s.detect); err != nil {
		return err
	}
	if err := s.execute(ctx, StageCrop, StatusCropping, s.crop); err != nil {
		return err
	}
	if s.plan.Index(StageOutpaint) >= 0 {
		if err := s.execute(ctx, StageOutpaint, StatusOutpainting, s.outpaint); err != nil {
			return err
		}
	}
	return s.execute(ctx, StageRestore, StatusRestoring, s.restore)
}

// execute runs one stage with the retry policy for its kind. On entering the
// stage the retry state resets; exhaustion or a non-retryable error marks
// the item failed at this stage.
func (s *sequencer) execute(ctx context.Context, kind StageKind, status ItemStatus, fn func(context.Context) error) error {
	if err := s.run.gate(ctx); err != nil {
		return err
	}
	s.run.setItemStatus(s.item, status)
	s.tracker.stageStarted(s.item.ID, kind)
	s.run.publishProgress(s.item, kind, fmt.Sprintf("%s started", kind))

	policy := s.policies.For(kind)
	stageCtx := services.WithStage(ctx, string(kind))
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := s.run.gate(ctx); err != nil {
			return err
		}
		err := fn(services.WithRequestID(stageCtx, uuid.NewString()))
		if err == nil {
			took := time.Since(start)
			s.item.Results = append(s.item.Results, StageResult{
				Stage:    kind,
				Attempts: attempt,
				Duration: took,
			})
			s.tracker.stageCompleted(s.item.ID, kind, took)
			s.logger.Info("stage completed",
				logging.String(logging.FieldItemID, s.item.ID),
				logging.String(logging.FieldStage, string(kind)),
				logging.Int("attempts", attempt),
				logging.Duration("stage_duration", took),
			)
			s.run.publishProgress(s.item, kind, fmt.Sprintf("%s completed", kind))
			return nil
		}
		if services.IsCancelled(err) {
			return err
		}

		delay, retry := policy.Delay(attempt)
		if !retry || !services.Retryable(err) {
			wrapped := fmt.Errorf("%s failed after %d attempt(s): %w", kind, attempt, err)
			s.item.Results = append(s.item.Results, StageResult{
				Stage:    kind,
				Attempts: attempt,
				Duration: time.Since(start),
				Err:      wrapped,
			})
			s.item.fail(kind, wrapped)
			return wrapped
		}
		s.logger.Warn("stage attempt failed, retrying",
			logging.String(logging.FieldItemID, s.item.ID),
			logging.String(logging.FieldStage, string(kind)),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *sequencer) detect(ctx context.Context) error {
	result, err := s.client.Detect(ctx, gemini.DetectRequest{Image: s.item.Source, MIME: s.item.MIME})
	if err != nil {
		return err
	}

	s.item.Regions = result.Regions
	photos := make([]*Photo, 0, len(result.Regions))
	for i, region := range result.Regions {
		photos = append(photos, &Photo{Index: i, Region: region})
	}
	s.item.mu.Lock()
	s.item.Photos = photos
	s.item.mu.Unlock()

	// Outpainting only applies when some region actually needs fill; drop it
	// from the plan otherwise so its weight redistributes.
	if s.plan.Index(StageOutpaint) >= 0 && !s.anyNeedsFill() {
		s.plan = s.plan.WithoutStage(StageOutpaint)
		s.tracker.replan(s.item.ID, s.plan, StageDetect)
	}
	s.logger.Info("detection complete",
		logging.String(logging.FieldItemID, s.item.ID),
		logging.Int("photos", len(photos)),
	)
	return nil
}

func (s *sequencer) anyNeedsFill() bool {
	for _, photo := range s.item.Photos {
		if photo.Region.NeedsFill && photo.Region.HasUsableContour() {
			return true
		}
	}
	return false
}

func (s *sequencer) crop(ctx context.Context) error {
	if s.source == nil {
		img, _, err := raster.Decode(s.item.Source)
		if err != nil {
			return services.Wrap(services.ErrMalformed, string(StageCrop), "decode", "source raster unreadable", err)
		}
		s.source = img
		bounds := img.Bounds()
		s.srcW, s.srcH = bounds.Dx(), bounds.Dy()
	}

	total := len(s.item.Photos)
	for i, photo := range s.item.Photos {
		if photo.Image != nil {
			continue
		}
		cropped, box, err := raster.Crop(s.source, photo.Region, s.opts.PaddingFraction)
		if err != nil {
			return services.Wrap(services.ErrMalformed, string(StageCrop), "crop", "region rejected", err)
		}
		out := cropped
		if s.opts.TrimDarkEdges {
			out = raster.TrimDarkEdges(cropped)
		}
		encoded, mimeType, err := raster.Encode(out, s.item.MIME, s.opts.OutputQuality)
		if err != nil {
			return services.Wrap(services.ErrMalformed, string(StageCrop), "encode", "crop encode failed", err)
		}
		photo.Box = box
		photo.Image = encoded
		photo.MIME = mimeType

		s.tracker.stageProgress(s.item.ID, float64(i+1)/float64(total))
		s.run.publishProgress(s.item, StageCrop, fmt.Sprintf("cropped photo %d/%d", i+1, total))
		if s.opts.EnableVerification {
			s.verifier.dispatch(ctx, s.item, photo.Index, "crop", encoded, mimeType)
		}
	}
	return nil
}

func (s *sequencer) outpaint(ctx context.Context) error {
	total := 0
	for _, photo := range s.item.Photos {
		if photo.Region.NeedsFill && photo.Region.HasUsableContour() {
			total++
		}
	}
	done := 0
	for _, photo := range s.item.Photos {
		if !photo.Region.NeedsFill || !photo.Region.HasUsableContour() {
			continue
		}
		if photo.Outpainted {
			done++
			continue
		}
		contour := raster.ContourPixels(photo.Region.Contour, s.srcW, s.srcH, photo.Box)
		result, err := s.client.Outpaint(ctx, gemini.OutpaintRequest{
			Image:   photo.Image,
			MIME:    photo.MIME,
			Contour: contour,
			Width:   photo.Box.W,
			Height:  photo.Box.H,
		})
		if err != nil {
			return err
		}
		photo.Image = result.Image
		if result.MIME != "" {
			photo.MIME = result.MIME
		}
		photo.Outpainted = true
		done++
		s.tracker.stageProgress(s.item.ID, float64(done)/float64(total))
		s.run.publishProgress(s.item, StageOutpaint, fmt.Sprintf("filled photo %d/%d", done, total))
	}
	return nil
}

func (s *sequencer) restore(ctx context.Context) error {
	total := len(s.item.Photos)
	done := 0
	for _, photo := range s.item.Photos {
		if photo.Restored {
			done++
			continue
		}
		result, err := s.client.Restore(ctx, gemini.RestoreRequest{Image: photo.Image, MIME: photo.MIME})
		if err != nil {
			return err
		}
		photo.Image = result.Image
		if result.MIME != "" {
			photo.MIME = result.MIME
		}
		photo.Improvements = result.Improvements
		photo.Restored = true

		if s.opts.OutputDir != "" {
			path, err := s.writeOutput(photo)
			if err != nil {
				return err
			}
			photo.OutputPath = path
		}
		done++
		s.tracker.stageProgress(s.item.ID, float64(done)/float64(total))
		s.run.publishProgress(s.item, StageRestore, fmt.Sprintf("restored photo %d/%d", done, total))
		if s.opts.EnableVerification {
			s.verifier.dispatch(ctx, s.item, photo.Index, "restoration", photo.Image, photo.MIME)
		}
	}
	return nil
}

func (s *sequencer) writeOutput(photo *Photo) (string, error) {
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, string(StageRestore), "write", "create output directory", err)
	}
	name := fmt.Sprintf("%s_photo_%02d%s", baseName(s.item.Name), photo.Index+1, extensionFor(photo.MIME))
	path := filepath.Join(s.opts.OutputDir, name)
	if err := os.WriteFile(path, photo.Image, 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, string(StageRestore), "write", "write restored photo", err)
	}
	return path, nil
}

func (s *sequencer) finish(status ItemStatus) {
	if !s.item.Status.Terminal() {
		s.item.Status = status
	}
	if s.item.FinishedAt.IsZero() {
		s.item.FinishedAt = time.Now()
	}
	s.tracker.itemFinished(s.item.ID, s.item.Status == StatusCompleted)
	s.run.itemDone(s.item)
}

func baseName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "scan"
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
