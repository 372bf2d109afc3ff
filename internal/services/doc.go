// Package services defines shared utilities consumed by the pipeline and the
// remote provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, run IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the retryable/non-retryable taxonomy the pipeline acts on.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
