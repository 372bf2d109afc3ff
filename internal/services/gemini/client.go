package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"patina/internal/raster"
	"patina/internal/services"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// HTTP talks to the Google generative API over plain HTTPS. Each call is a
// single generateContent round trip; classification of failures into the
// services markers is the caller's retry signal.
type HTTP struct {
	cfg        Config
	httpClient *http.Client
}

var _ Client = (*HTTP)(nil)

// Option customizes the client.
type Option func(*HTTP)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTP) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTP constructs a client using the supplied configuration.
func NewHTTP(cfg Config, opts ...Option) *HTTP {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	client := &HTTP{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type detectPayload struct {
	PhotoCount    int             `json:"photo_count"`
	BoundingBoxes []raster.Region `json:"bounding_boxes"`
}

// Detect locates sub-photos in a scan and returns their normalized regions.
func (c *HTTP) Detect(ctx context.Context, req DetectRequest) (DetectResult, error) {
	var empty DetectResult
	if len(req.Image) == 0 {
		return empty, services.Wrap(services.ErrMalformed, "detect", "detect", "empty image", nil)
	}

	ctx, cancel := c.opContext(ctx, c.cfg.DetectTimeout)
	defer cancel()

	payload := imageRequest(detectPrompt, req.Image, req.MIME, nil)
	resp, err := c.generate(ctx, c.cfg.DetectModel, payload, "detect")
	if err != nil {
		return empty, err
	}

	text := firstTextPart(resp)
	if text == "" {
		return empty, services.Wrap(services.ErrMalformed, "detect", "detect", "response has no text part", nil)
	}
	var parsed detectPayload
	if err := decodeJSONPayload(text, &parsed); err != nil {
		return empty, services.Wrap(services.ErrMalformed, "detect", "detect", "unparseable detection payload", err)
	}

	regions := make([]raster.Region, 0, len(parsed.BoundingBoxes))
	for _, region := range parsed.BoundingBoxes {
		region.Rotation = raster.QuantizeRotation(float64(region.Rotation))
		if err := region.Validate(); err != nil {
			continue
		}
		regions = append(regions, region)
	}
	if len(regions) == 0 {
		return empty, services.Wrap(services.ErrMalformed, "detect", "detect", "no usable regions in payload", nil)
	}
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Y != regions[j].Y {
			return regions[i].Y < regions[j].Y
		}
		return regions[i].X < regions[j].X
	})
	regions = raster.ResolveOverlaps(regions)

	count := parsed.PhotoCount
	if count != len(regions) {
		count = len(regions)
	}
	return DetectResult{
		Regions:    regions,
		PhotoCount: count,
		Provider:   c.cfg.DetectModel,
	}, nil
}

// Outpaint fills the area between the crop contour and its bounding
// rectangle with synthesized content.
func (c *HTTP) Outpaint(ctx context.Context, req OutpaintRequest) (OutpaintResult, error) {
	var empty OutpaintResult
	if len(req.Image) == 0 {
		return empty, services.Wrap(services.ErrMalformed, "outpaint", "outpaint", "empty image", nil)
	}
	if len(req.Contour) < 3 {
		return empty, services.Wrap(services.ErrMalformed, "outpaint", "outpaint", "contour needs at least 3 points", raster.ErrEmptyContour)
	}

	ctx, cancel := c.opContext(ctx, c.cfg.OutpaintTimeout)
	defer cancel()

	prompt := fmt.Sprintf(outpaintPromptFormat, formatContour(req.Contour), req.Width, req.Height)
	payload := imageRequest(prompt, req.Image, req.MIME, []string{"IMAGE"})
	resp, err := c.generate(ctx, c.cfg.ImageModel, payload, "outpaint")
	if err != nil {
		return empty, err
	}

	img, mime, err := firstImagePart(resp)
	if err != nil {
		return empty, services.Wrap(services.ErrMalformed, "outpaint", "outpaint", "invalid inline image", err)
	}
	if img == nil {
		return empty, services.Wrap(services.ErrMalformed, "outpaint", "outpaint", "response has no image part", nil)
	}
	return OutpaintResult{Image: img, MIME: mime}, nil
}

type restorePayload struct {
	Improvements []string `json:"improvements"`
}

// Restore produces a restored version of the photo plus the provider's list
// of applied improvements.
func (c *HTTP) Restore(ctx context.Context, req RestoreRequest) (RestoreResult, error) {
	var empty RestoreResult
	if len(req.Image) == 0 {
		return empty, services.Wrap(services.ErrMalformed, "restore", "restore", "empty image", nil)
	}

	ctx, cancel := c.opContext(ctx, c.cfg.RestoreTimeout)
	defer cancel()

	payload := imageRequest(restorePrompt, req.Image, req.MIME, []string{"IMAGE", "TEXT"})
	resp, err := c.generate(ctx, c.cfg.ImageModel, payload, "restore")
	if err != nil {
		return empty, err
	}

	img, mime, err := firstImagePart(resp)
	if err != nil {
		return empty, services.Wrap(services.ErrMalformed, "restore", "restore", "invalid inline image", err)
	}
	if img == nil {
		return empty, services.Wrap(services.ErrMalformed, "restore", "restore", "response has no image part", nil)
	}

	var improvements []string
	if text := firstTextPart(resp); text != "" {
		var parsed restorePayload
		if err := decodeJSONPayload(text, &parsed); err == nil {
			improvements = parsed.Improvements
		}
	}
	return RestoreResult{
		Image:        img,
		MIME:         mime,
		Improvements: improvements,
		Provider:     c.cfg.ImageModel,
	}, nil
}

// Verify runs an advisory quality review of a stage output. Failures here
// never gate the pipeline; callers attach the note and move on.
func (c *HTTP) Verify(ctx context.Context, req VerifyRequest) (VerificationNote, error) {
	var empty VerificationNote
	if len(req.Image) == 0 {
		return empty, services.Wrap(services.ErrMalformed, "verify", "verify", "empty image", nil)
	}

	ctx, cancel := c.opContext(ctx, c.cfg.VerifyTimeout)
	defer cancel()

	prompt := fmt.Sprintf(verifyPromptFormat, req.Kind, req.Index)
	payload := imageRequest(prompt, req.Image, req.MIME, nil)
	resp, err := c.generate(ctx, c.cfg.VerifyModel, payload, "verify")
	if err != nil {
		return empty, err
	}

	text := firstTextPart(resp)
	if text == "" {
		return empty, services.Wrap(services.ErrVerification, "verify", "verify", "response has no text part", nil)
	}
	var note VerificationNote
	if err := decodeJSONPayload(text, &note); err != nil {
		return empty, services.Wrap(services.ErrVerification, "verify", "verify", "unparseable verification payload", err)
	}
	note.Stage = req.Kind
	if note.Confidence < 0 {
		note.Confidence = 0
	}
	if note.Confidence > 1 {
		note.Confidence = 1
	}
	return note, nil
}

func (c *HTTP) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (c *HTTP) generate(ctx context.Context, model string, payload generateRequest, op string) (generateResponse, error) {
	var decoded generateResponse
	if c.cfg.APIKey == "" {
		return decoded, services.Wrap(services.ErrConfiguration, op, op, "api key required", nil)
	}
	if strings.TrimSpace(model) == "" {
		return decoded, services.Wrap(services.ErrConfiguration, op, op, "model required", nil)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return decoded, services.Wrap(services.ErrMalformed, op, op, "encode request body", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return decoded, services.Wrap(services.ErrConfiguration, op, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return decoded, services.Wrap(services.ErrTransient, op, op, "request deadline exceeded", ctxErr)
			}
			return decoded, ctxErr
		}
		return decoded, services.Wrap(services.ErrTransient, op, op, "http request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, services.Wrap(services.ErrTransient, op, op, "read response body", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decoded, statusError(op, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return decoded, services.Wrap(services.ErrMalformed, op, op, "decode response", err)
	}
	if decoded.Error != nil {
		return decoded, services.Wrap(services.ErrRejected, op, op,
			fmt.Sprintf("api error: %s", strings.TrimSpace(decoded.Error.Message)), nil)
	}
	if len(decoded.Candidates) == 0 {
		return decoded, services.Wrap(services.ErrMalformed, op, op, "response has no candidates", nil)
	}
	return decoded, nil
}

func statusError(op string, status int, body []byte) error {
	snippet := strings.Join(strings.Fields(string(body)), " ")
	if len(snippet) > 160 {
		snippet = snippet[:160] + "..."
	}
	message := fmt.Sprintf("http %d: %s", status, snippet)
	switch {
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, op, op, message, nil)
	default:
		return services.Wrap(services.ErrRejected, op, op, message, nil)
	}
}

func formatContour(points []image.Point) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range points {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "[%d,%d]", p.X, p.Y)
	}
	b.WriteByte(']')
	return b.String()
}
