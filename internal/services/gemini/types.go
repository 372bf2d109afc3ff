package gemini

import (
	"context"
	"image"
	"time"

	"patina/internal/config"
	"patina/internal/raster"
)

// Client is the remote stage boundary the pipeline consumes. One method per
// stage kind; each call resolves with a typed payload or fails with a typed
// error, and performs no retries itself.
type Client interface {
	Detect(ctx context.Context, req DetectRequest) (DetectResult, error)
	Outpaint(ctx context.Context, req OutpaintRequest) (OutpaintResult, error)
	Restore(ctx context.Context, req RestoreRequest) (RestoreResult, error)
	Verify(ctx context.Context, req VerifyRequest) (VerificationNote, error)
}

// DetectRequest asks the provider to find sub-photos in a scan.
type DetectRequest struct {
	Image []byte
	MIME  string
}

// DetectResult carries the detected regions in normalized coordinates.
type DetectResult struct {
	Regions    []raster.Region
	PhotoCount int
	Provider   string
}

// OutpaintRequest asks the provider to fill the area between a crop's contour
// and its bounding rectangle. Contour points are crop-local pixels.
type OutpaintRequest struct {
	Image   []byte
	MIME    string
	Contour []image.Point
	Width   int
	Height  int
}

// OutpaintResult is the synthetically filled raster.
type OutpaintResult struct {
	Image []byte
	MIME  string
}

// RestoreRequest asks the provider to restore a cropped photo.
type RestoreRequest struct {
	Image []byte
	MIME  string
}

// RestoreResult carries the restored raster plus the structured list of
// improvements the provider reports having applied.
type RestoreResult struct {
	Image        []byte
	MIME         string
	Improvements []string
	Provider     string
}

// VerifyRequest asks for an advisory quality check of a stage output.
type VerifyRequest struct {
	Kind  string
	Image []byte
	MIME  string
	Index int
}

// VerificationCheck is one named pass/fail observation.
type VerificationCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// VerificationNote is the advisory annotation attached to a stage result
// after the fact. It never gates pipeline progress.
type VerificationNote struct {
	Stage      string              `json:"stage"`
	Passed     bool                `json:"passed"`
	Confidence float64             `json:"confidence"`
	Summary    string              `json:"summary,omitempty"`
	Checks     []VerificationCheck `json:"checks,omitempty"`
}

// Config captures the runtime settings required to talk to the provider.
type Config struct {
	BaseURL     string
	APIKey      string
	DetectModel string
	ImageModel  string
	VerifyModel string

	DetectTimeout   time.Duration
	OutpaintTimeout time.Duration
	RestoreTimeout  time.Duration
	VerifyTimeout   time.Duration
}

// ConfigFrom maps application configuration onto client settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		DetectModel:     cfg.Provider.DetectModel,
		ImageModel:      cfg.Provider.ImageModel,
		VerifyModel:     cfg.Provider.VerifyModel,
		DetectTimeout:   time.Duration(cfg.Provider.DetectTimeout) * time.Second,
		OutpaintTimeout: time.Duration(cfg.Provider.OutpaintTimeout) * time.Second,
		RestoreTimeout:  time.Duration(cfg.Provider.RestoreTimeout) * time.Second,
		VerifyTimeout:   time.Duration(cfg.Provider.VerifyTimeout) * time.Second,
	}
}
