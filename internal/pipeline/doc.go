// Package pipeline drives batches of scanned photos through the restoration
// workflow: detection, geometric crop, optional generative edge fill,
// restoration, and advisory verification.
//
// A Scheduler owns a batch run. Each item is processed by its own sequencer
// goroutine under a bounded concurrency limit; stages within an item execute
// strictly in order with per-stage retry and backoff. Verification runs on a
// separate fire-and-forget channel that never occupies a concurrency slot.
// Progress is aggregated from fixed stage weights and reported together with
// an advisory ETA.
package pipeline
