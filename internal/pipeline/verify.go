package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"patina/internal/logging"
	"patina/internal/services/gemini"
)

// verifier dispatches advisory quality checks on a fire-and-forget channel.
// Verification outcomes attach to already-recorded stage results and never
// gate sequencing; failures are logged and swallowed.
type verifier struct {
	client gemini.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

func newVerifier(client gemini.Client, logger *slog.Logger) *verifier {
	return &verifier{client: client, logger: logging.NewComponentLogger(logger, "verifier")}
}

// dispatch starts one verification call in the background. The run context
// is used so cancellation aborts in-flight verifications too.
func (v *verifier) dispatch(ctx context.Context, item *Item, photoIndex int, kind string, image []byte, mimeType string) {
	if v.client == nil || len(image) == 0 {
		return
	}
	payload := make([]byte, len(image))
	copy(payload, image)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		note, err := v.client.Verify(ctx, gemini.VerifyRequest{
			Kind:  kind,
			Image: payload,
			MIME:  mimeType,
			Index: photoIndex,
		})
		if err != nil {
			v.logger.Debug("verification call failed",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldStage, kind),
				logging.Error(err),
			)
			return
		}
		item.attachNote(photoIndex, note)
		v.logger.Debug("verification note attached",
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldStage, kind),
			logging.Bool("passed", note.Passed),
		)
	}()
}

// wait blocks until all dispatched verifications have returned.
func (v *verifier) wait() {
	v.wg.Wait()
}
