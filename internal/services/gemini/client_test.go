package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"patina/internal/services"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		DetectModel: "detect-model",
		ImageModel:  "image-model",
		VerifyModel: "verify-model",
	}
}

func textResponse(text string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
	encoded, _ := json.Marshal(resp)
	return string(encoded)
}

func imageResponse(data []byte, mime string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{
						map[string]any{"text": `{"improvements":["removed scratches","fixed fading"]}`},
						map[string]any{"inlineData": map[string]any{
							"mime_type": mime,
							"data":      base64.StdEncoding.EncodeToString(data),
						}},
					},
				},
			},
		},
	}
	encoded, _ := json.Marshal(resp)
	return string(encoded)
}

func TestDetectParsesRegions(t *testing.T) {
	payload := `{"photo_count": 2, "bounding_boxes": [
		{"x": 30, "y": 30, "width": 440, "height": 440, "confidence": 0.95,
		 "label": "photo 1", "rotation_angle": 90,
		 "rotation_reasoning": "heads point right",
		 "contour": [[30,30],[470,30],[470,470],[30,470]],
		 "needs_outpaint": false},
		{"x": 520, "y": 30, "width": 440, "height": 440, "confidence": 0.9,
		 "label": "photo 2", "rotation_angle": 0, "needs_outpaint": true}
	]}`

	var gotPath string
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		w.Write([]byte(textResponse("```json\n" + payload + "\n```")))
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	result, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/jpeg"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if gotPath != "/models/detect-model:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if result.PhotoCount != 2 || len(result.Regions) != 2 {
		t.Fatalf("got %d regions, count %d", len(result.Regions), result.PhotoCount)
	}
	if result.Regions[0].Rotation != 90 {
		t.Errorf("rotation = %d, want 90", result.Regions[0].Rotation)
	}
	if !result.Regions[0].HasUsableContour() {
		t.Error("first region should carry a usable contour")
	}
	if result.Regions[1].X < 470 {
		t.Errorf("regions should stay separated, second X = %d", result.Regions[1].X)
	}
}

func TestDetectSkipsInvalidRegions(t *testing.T) {
	payload := `{"photo_count": 2, "bounding_boxes": [
		{"x": 10, "y": 10, "width": 0, "height": 100, "rotation_angle": 0},
		{"x": 10, "y": 10, "width": 300, "height": 300, "rotation_angle": 180}
	]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse(payload)))
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	result, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(result.Regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(result.Regions))
	}
	if result.PhotoCount != 1 {
		t.Errorf("photo count = %d, want corrected 1", result.PhotoCount)
	}
}

func TestDetectMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse("I could not find any photos, sorry!")))
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	_, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
	if services.Retryable(err) {
		t.Error("malformed payload must not be retryable")
	}
}

func TestRestoreReturnsImageAndImprovements(t *testing.T) {
	restored := []byte("restored-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(imageResponse(restored, "image/png")))
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	result, err := client.Restore(context.Background(), RestoreRequest{Image: []byte("img"), MIME: "image/jpeg"})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if string(result.Image) != string(restored) {
		t.Error("restored bytes mismatch")
	}
	if result.MIME != "image/png" {
		t.Errorf("mime = %q", result.MIME)
	}
	if len(result.Improvements) != 2 {
		t.Fatalf("improvements = %v", result.Improvements)
	}
}

func TestRestoreMissingImagePart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse("no image for you")))
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	_, err := client.Restore(context.Background(), RestoreRequest{Image: []byte("img"), MIME: "image/jpeg"})
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}

func TestOutpaintRequiresContour(t *testing.T) {
	client := NewHTTP(testConfig("http://unused"))
	_, err := client.Outpaint(context.Background(), OutpaintRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("want ErrMalformed, got %v", err)
	}
}

func TestVerifyParsesNote(t *testing.T) {
	payload := `{"passed": true, "confidence": 0.88, "summary": "crop looks tight",
		"checks": [
			{"name": "crop_tightness", "passed": true, "detail": "edges flush"},
			{"name": "completeness", "passed": true},
			{"name": "orientation", "passed": true},
			{"name": "image_quality", "passed": false, "detail": "slight blur"}
		]}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(textResponse(payload)))
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	note, err := client.Verify(context.Background(), VerifyRequest{Kind: "crop", Image: []byte("img"), MIME: "image/jpeg", Index: 1})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !note.Passed || note.Stage != "crop" {
		t.Errorf("note = %+v", note)
	}
	if len(note.Checks) != 4 {
		t.Fatalf("checks = %d, want 4", len(note.Checks))
	}
	if note.Checks[3].Passed {
		t.Error("image_quality check should have failed")
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	_, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("want ErrTransient, got %v", err)
	}
	if !services.Retryable(err) {
		t.Error("5xx must be retryable")
	}
}

func TestRateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	_, err := client.Restore(context.Background(), RestoreRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("want ErrTransient, got %v", err)
	}
}

func TestClientErrorIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTP(testConfig(server.URL))
	_, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(textResponse("{}")))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.DetectTimeout = 20 * time.Millisecond
	client := NewHTTP(cfg)
	_, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("want ErrTransient for timeout, got %v", err)
	}
}

func TestCancellationPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(textResponse("{}")))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewHTTP(testConfig(server.URL))
	_, err := client.Detect(ctx, DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if services.Retryable(err) {
		t.Error("cancellation must not be retryable")
	}
}

func TestMissingAPIKeyIsConfiguration(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.APIKey = ""
	client := NewHTTP(cfg)
	_, err := client.Detect(context.Background(), DetectRequest{Image: []byte("img"), MIME: "image/png"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("want ErrConfiguration, got %v", err)
	}
}

func TestDecodeJSONPayloadVariants(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bare", `{"photo_count": 1}`},
		{"fenced", "```json\n{\"photo_count\": 1}\n```"},
		{"fenced no lang", "```\n{\"photo_count\": 1}\n```"},
		{"prose prefix", "Here is the result: {\"photo_count\": 1}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed struct {
				PhotoCount int `json:"photo_count"`
			}
			if err := decodeJSONPayload(tc.content, &parsed); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if parsed.PhotoCount != 1 {
				t.Errorf("photo_count = %d", parsed.PhotoCount)
			}
		})
	}
}
